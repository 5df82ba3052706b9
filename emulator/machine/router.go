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

import (
	"log"

	"github.com/threeb1/corevm/emulator/memory"
)

// Bus Router: six near-identical wrappers (3 widths x 2 directions) over
// one dispatcher parameterised by width and direction, folding what were
// separate permission-check macros into a single routine.

func (m *Machine) Read8(addr uint32) uint32  { return m.read(addr, 8) }
func (m *Machine) Read16(addr uint32) uint32 { return m.read(addr, 16) }
func (m *Machine) Read32(addr uint32) uint32 { return m.read(addr, 32) }

func (m *Machine) Write8(addr uint32, v uint32)  { m.write(addr, 8, v) }
func (m *Machine) Write16(addr uint32, v uint32) { m.write(addr, 16, v) }
func (m *Machine) Write32(addr uint32, v uint32) { m.write(addr, 32, v) }

// DisassemblerRead8/16/32 are identical to the CPU's own read hooks: the
// disassembler observes memory the same way an instruction fetch would,
// faults and all.
func (m *Machine) DisassemblerRead8(addr uint32) uint32  { return m.Read8(addr) }
func (m *Machine) DisassemblerRead16(addr uint32) uint32 { return m.Read16(addr) }
func (m *Machine) DisassemblerRead32(addr uint32) uint32 { return m.Read32(addr) }

func (m *Machine) overlayROM(addr uint32) uint32 {
	if !m.romlmap {
		return addr | 0x800000
	}
	return addr
}

func (m *Machine) read(addr uint32, width int) uint32 {
	addr = m.overlayROM(addr)
	if v := m.checkAccess(addr, false); v != Allowed {
		m.faultAccess(addr, width, false, v)
		return 0xFFFFFFFF
	}
	return m.dispatchRead(addr, width)
}

func (m *Machine) write(addr uint32, width int, value uint32) {
	addr = m.overlayROM(addr)
	if v := m.checkAccess(addr, true); v != Allowed {
		m.faultAccess(addr, width, true, v)
		return
	}
	m.dispatchWrite(addr, width, value)
}

// faultAccess sets GENSTAT/BSR0/BSR1 per the verdict's fault encoding and
// pulses the CPU bus error. KERNEL and PAGE_NO_WE leave GENSTAT untouched
// (a documented historical TODO upstream, implemented as-is here and
// flagged non-conformant rather than silently "fixed").
func (m *Machine) faultAccess(addr uint32, width int, writing bool, v Verdict) {
	switch v {
	case PageFault:
		if writing {
			m.genstat = 0x8BFF
		} else {
			m.genstat = 0xCBFF
		}
		if m.pie {
			m.genstat |= 0x0400
		}
	case UIE:
		if writing {
			m.genstat = 0x9AFF
		} else {
			m.genstat = 0xDAFF
		}
		if m.pie {
			m.genstat |= 0x0400
		}
	case Kernel, PageNoWE:
		// GENSTAT intentionally untouched.
	}

	if width >= 16 {
		m.bsr0 = 0x7C00
	} else if addr&1 != 0 {
		m.bsr0 = 0x7D00
	} else {
		m.bsr0 = 0x7E00
	}
	m.bsr0 |= uint16((addr >> 16) & 0xFF)
	m.bsr1 = uint16(addr & 0xFFFF)

	m.host.PulseBusError()
}

// dispatchRead and dispatchWrite decode the address range after the ROM
// overlay has already been applied.
func (m *Machine) dispatchRead(addr uint32, width int) uint32 {
	switch {
	case addr <= 0x3FFFFF:
		return m.ramRead(addr, width)
	case addr >= 0x400000 && addr <= 0x7FFFFF:
		return m.zoneARead(addr, width)
	case addr >= 0x800000 && addr <= 0xBFFFFF:
		return m.regionRead(m.rom, addr, width)
	case addr >= 0xC00000 && addr <= 0xFFFFFF:
		return m.zoneBRead(addr, width)
	default:
		log.Printf("machine: unhandled read%d, addr=0x%08X", width, addr)
		return 0xFFFFFFFF
	}
}

func (m *Machine) dispatchWrite(addr uint32, width int, value uint32) {
	switch {
	case addr <= 0x3FFFFF:
		m.ramWrite(addr, width, value)
	case addr >= 0x400000 && addr <= 0x7FFFFF:
		m.zoneAWrite(addr, width, value)
	case addr >= 0x800000 && addr <= 0xBFFFFF:
		// ROM is read-only; writes are silently dropped.
	case addr >= 0xC00000 && addr <= 0xFFFFFF:
		m.zoneBWrite(addr, width, value)
	default:
		log.Printf("machine: unhandled write%d, addr=0x%08X, data=0x%08X", width, addr, value)
	}
}

func (m *Machine) ramRead(addr uint32, width int) uint32 {
	phys := m.translate(addr, false)
	if phys <= 0x1FFFFF {
		return m.regionRead(m.baseRAM, phys, width)
	}
	if int(phys-0x200000) < m.expRAM.Size() {
		return m.regionRead(m.expRAM, phys-0x200000, width)
	}
	return 0xFFFFFFFF
}

func (m *Machine) ramWrite(addr uint32, width int, value uint32) {
	phys := m.translate(addr, true)
	if phys <= 0x1FFFFF {
		m.regionWrite(m.baseRAM, phys, width, value)
		return
	}
	if int(phys-0x200000) < m.expRAM.Size() {
		m.regionWrite(m.expRAM, phys-0x200000, width, value)
	}
	// Beyond installed expansion RAM: write silently dropped.
}

func (m *Machine) regionRead(r *memory.Region, addr uint32, width int) uint32 {
	switch width {
	case 8:
		return uint32(r.Read8(addr))
	case 16:
		return uint32(r.Read16(addr))
	default:
		return r.Read32(addr)
	}
}

func (m *Machine) regionWrite(r *memory.Region, addr uint32, width int, value uint32) {
	switch width {
	case 8:
		r.Write8(addr, byte(value))
	case 16:
		r.Write16(addr, uint16(value))
	default:
		r.Write32(addr, value)
	}
}

func (m *Machine) zoneARead(addr uint32, width int) uint32 {
	switch addr & 0x0F0000 {
	case 0x000000:
		if addr > 0x4007FF {
			log.Printf("machine: read%d from map RAM mirror, addr=0x%08X", width, addr)
		}
		return m.regionRead(m.mapRAM, addr, width)
	case 0x020000:
		if addr > 0x427FFF {
			log.Printf("machine: read%d from video RAM mirror, addr=0x%08X", width, addr)
		}
		return m.regionRead(m.vram, addr, width)
	default:
		return m.ioReadZoneA(addr, width)
	}
}

func (m *Machine) zoneAWrite(addr uint32, width int, value uint32) {
	switch addr & 0x0F0000 {
	case 0x000000:
		if addr > 0x4007FF {
			log.Printf("machine: write%d to map RAM mirror, addr=0x%08X, data=0x%08X", width, addr, value)
		}
		m.regionWrite(m.mapRAM, addr, width, value)
	case 0x020000:
		if addr > 0x427FFF {
			log.Printf("machine: write%d to video RAM mirror, addr=0x%08X, data=0x%08X", width, addr, value)
		}
		m.regionWrite(m.vram, addr, width, value)
	default:
		m.ioWriteZoneA(addr, width, value)
	}
}
