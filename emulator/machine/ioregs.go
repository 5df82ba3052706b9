/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package machine

import "log"

// I/O Register File. Zone A sub-registers are selected by
// addr & 0x0F0000. Zone B first narrows to the 0xE00000/0xF00000 range
// (HDC, FDC, MCR2, RTC and the general control register all live there;
// 0xC00000/0xD00000 are the unmodeled expansion slots) and then to a
// device within it by addr & 0x070000.
const (
	regGenstat  = 0x010000
	regBSR0     = 0x030000
	regBSR1     = 0x040000
	regDMACount = 0x060000
	regLPRStat  = 0x070000
	regMiscCon  = 0x0A0000
	regClrStat  = 0x0C0000
	regDMAAddr  = 0x0D0000
	regDiskCon  = 0x0E0000

	zoneBDeviceFDC     = 0x010000
	zoneBDeviceControl = 0x040000
)

func (m *Machine) ioReadZoneA(addr uint32, width int) uint32 {
	switch addr & 0x0F0000 {
	case regGenstat:
		return dup16(m.genstat, width)
	case regBSR0:
		return dup16(m.bsr0, width)
	case regBSR1:
		return dup16(m.bsr1, width)
	case regDMACount:
		return uint32(m.dmaCount&0x3FFF) | 0xC000
	case regLPRStat:
		v := uint16(0x0012)
		if m.FDC.GetIRQ() {
			v |= 0x0008
		}
		return dup16(v, width)
	case regMiscCon, regClrStat:
		// Write-only; reads are accepted silently, per the real register.
		return 0xFFFFFFFF
	default:
		log.Printf("machine: read%d from unmapped zone A register, addr=0x%08X", width, addr)
		return 0xFFFFFFFF
	}
}

func dup16(v uint16, width int) uint32 {
	if width == 32 {
		return uint32(v)<<16 | uint32(v)
	}
	return uint32(v)
}

func (m *Machine) ioWriteZoneA(addr uint32, width int, value uint32) {
	switch addr & 0x0F0000 {
	case regGenstat:
		m.writeGenstat(addr, width, value)
	case regDMACount:
		m.writeDMACount(addr, value)
	case regMiscCon:
		m.writeMiscCon(value)
	case regClrStat:
		m.genstat, m.bsr0, m.bsr1 = 0xFFFF, 0xFFFF, 0xFFFF
	case regDMAAddr:
		m.writeDMAAddr(addr)
	case regDiskCon:
		m.writeDiskCon(value)
	default:
		log.Printf("machine: write%d to unmapped zone A register, addr=0x%08X, data=0x%08X", width, addr, value)
	}
}

// writeGenstat implements the documented "8-bit writes affect one byte"
// rule: the byte touched follows the address's own parity.
func (m *Machine) writeGenstat(addr uint32, width int, value uint32) {
	if width != 8 {
		m.genstat = uint16(value)
		return
	}
	if addr&1 == 0 {
		m.genstat = (m.genstat &^ 0xFF00) | uint16(value&0xFF)<<8
	} else {
		m.genstat = (m.genstat &^ 0x00FF) | uint16(value&0xFF)
	}
}

// writeDMACount loads dma_count/idmarw/dmaen from the written word, then
// bumps dma_count by one (the hardware counts N+1 transfers), and when
// idmarw is clear performs the documented dummy DMA transfer: 0xDEAD is
// written into base RAM at the mapped current bus address.
func (m *Machine) writeDMACount(addr uint32, value uint32) {
	v := uint16(value)
	m.dmaCount = v & 0x3FFF
	m.idmarw = v&0x4000 != 0
	m.dmaen = v&0x8000 != 0
	m.dmaCount = (m.dmaCount + 1) & 0x3FFF

	if !m.idmarw {
		phys := m.translate(addr, true)
		m.baseRAM.Write16(phys, 0xDEAD)
	}
}

func (m *Machine) writeMiscCon(value uint32) {
	v := uint16(value)
	m.dmaReading = v&0x4000 != 0
	m.leds = byte(^(v >> 8)) & 0x0F
}

// writeDMAAddr treats the address itself as the data: bit 14 of addr
// chooses which half of dma_address is loaded, and the bits actually
// written come from addr, not value.
func (m *Machine) writeDMAAddr(addr uint32) {
	if addr&0x4000 != 0 {
		m.dmaAddress = (m.dmaAddress & 0x1FE) | ((addr & 0x3FFE) << 8)
	} else {
		m.dmaAddress = (m.dmaAddress & 0x3FFE00) | (addr & 0x1FE)
	}
}

func (m *Machine) writeDiskCon(value uint32) {
	if value&0x80 == 0 {
		m.FDC.Reset()
	}
}

// zoneBRead and zoneBWrite cover 0xC00000-0xFFFFFF: the FDC, the general
// control register (PIE/ROMLMAP and a handful of silently-accepted
// modem/display bits), and the expansion-card/HDC/RTC/8274/keyboard
// fallbacks that the core does not model.
func (m *Machine) zoneBRead(addr uint32, width int) uint32 {
	if addr&0xE00000 == 0xE00000 {
		switch addr & 0x070000 {
		case zoneBDeviceFDC:
			reg := int((addr >> 1) & 3)
			return uint32(m.FDC.ReadRegister(reg))
		case zoneBDeviceControl:
			// Write-only latch; falls through to the unhandled log below.
		}
	}
	log.Printf("machine: read%d from unmapped zone B device, addr=0x%08X", width, addr)
	return 0xFFFFFFFF
}

func (m *Machine) zoneBWrite(addr uint32, width int, value uint32) {
	if addr&0xE00000 == 0xE00000 {
		switch addr & 0x070000 {
		case zoneBDeviceFDC:
			reg := int((addr >> 1) & 3)
			m.FDC.WriteRegister(reg, byte(value))
			return
		case zoneBDeviceControl:
			m.writeGeneralControl(addr, value)
			return
		}
	}
	// Expansion slots, RTC, 8274, keyboard controller, HDC: accept
	// writes silently.
}

// writeGeneralControl decodes address bits 12-14 (addr & 0x007000) to pick
// which latch within the general control register is being written. Only
// PIE and ROMLMAP are modeled; EE, BP, the L1/L2 modem bits, D/N connect
// and whole-screen reverse video are accepted and otherwise ignored.
func (m *Machine) writeGeneralControl(addr uint32, value uint32) {
	switch (addr >> 12) & 0x07 {
	case 1:
		m.pie = value&0x8000 != 0
	case 3:
		m.romlmap = value&0x8000 != 0
	default:
		// EE, BP, L1/L2 modem, D/N connect, whole-screen reverse video.
	}
}
