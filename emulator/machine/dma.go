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

import "github.com/threeb1/corevm/emulator/peripheral/fdc"

// StepDMA is the DMA Engine's one entry point. The driving CPU
// loop calls it once per bus cycle; when dmaen is set and the FDC asserts
// DRQ it moves one 16-bit word between the FDC data register and mapped
// RAM at dma_address, two FDC byte accesses at a time, advancing
// dma_address by 2 and decrementing dma_count by 1. A DRQ seen with
// dma_count already exhausted is reported to the FDC as a miss and the
// engine disarms itself.
func (m *Machine) StepDMA() {
	if !m.dmaen {
		return
	}
	if !m.FDC.GetDRQ() {
		return
	}
	if m.dmaCount == 0 {
		m.FDC.DMAMiss()
		m.dmaen = false
		return
	}

	if m.dmaReading {
		hi := m.FDC.ReadRegister(fdc.RegData)
		lo := m.FDC.ReadRegister(fdc.RegData)
		word := uint32(hi)<<8 | uint32(lo)
		m.ramWrite(m.dmaAddress, 16, word)
	} else {
		word := m.ramRead(m.dmaAddress, 16)
		m.FDC.WriteRegister(fdc.RegData, byte(word>>8))
		m.FDC.WriteRegister(fdc.RegData, byte(word))
	}

	m.dmaAddress += 2
	m.dmaCount--
}
