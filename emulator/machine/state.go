/*
Copyright (C) 2019-2020 Andreas T Jonsson

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package machine is the AT&T 3B1 core: the paged memory map, the
// memory-mapped bus, the I/O register file and the DMA engine, all
// threaded through one explicit aggregate rather than hidden globals, so
// more than one machine can exist in a test process at once.
package machine

import (
	"log"

	"github.com/threeb1/corevm/emulator/memory"
	"github.com/threeb1/corevm/emulator/peripheral"
	"github.com/threeb1/corevm/emulator/peripheral/fdc"
	"github.com/threeb1/corevm/emulator/processor"
)

const (
	baseRAMSize = 2 * 1024 * 1024
	expRAMSize  = 2 * 1024 * 1024
	mapRAMSize  = 2 * 1024
	vramSize    = 32 * 1024
	romMaxSize  = 256 * 1024
)

// Machine is the complete memory/bus/FDC core. The CPU core that drives it
// is external; Machine only needs a processor.Host to call back into.
type Machine struct {
	host processor.Host

	rom     *memory.Region
	baseRAM *memory.Region
	expRAM  *memory.Region
	mapRAM  *memory.Region
	vram    *memory.Region

	genstat, bsr0, bsr1 uint16

	dmaCount   uint16 // 14-bit
	dmaAddress uint32 // 22-bit
	idmarw     bool
	dmaen      bool
	dmaReading bool

	leds    byte
	pie     bool
	romlmap bool

	FDC *fdc.Controller

	// chips lists every peripheral.Chip Reset walks as a unit. The FDC is
	// the only one today; a hard disk or RTC model would append here too.
	chips []peripheral.Chip
}

// New builds a reset Machine with empty RAM, a zero-filled placeholder ROM
// of the full romMaxSize (mirroring the original's statically-sized rom
// buffer, always present whether or not an image has been loaded into it),
// and no FDC image loaded. host receives bus-error pulses, status-register
// reads and end-of-timeslice requests.
func New(host processor.Host) *Machine {
	m := &Machine{
		host:    host,
		rom:     memory.NewRegion(romMaxSize),
		baseRAM: memory.NewRegion(baseRAMSize),
		expRAM:  memory.NewRegion(expRAMSize),
		mapRAM:  memory.NewRegion(mapRAMSize),
		vram:    memory.NewRegion(vramSize),
	}
	m.FDC = fdc.NewController(host)
	m.chips = []peripheral.Chip{m.FDC}
	m.Reset()
	return m
}

// LoadROM installs the given bytes as the ROM image, mapped at
// 0x800000-0xBFFFFF. The image is padded up to the next power of two; an
// image larger than romMaxSize is truncated to romMaxSize and logged.
func (m *Machine) LoadROM(b []byte) {
	if len(b) > romMaxSize {
		log.Printf("machine: ROM image (%d bytes) truncated to %d", len(b), romMaxSize)
		b = b[:romMaxSize]
	}
	m.rom = memory.NewRegionFromBytes(b)
}

// Reset restores the defined initial pattern: GENSTAT/BSR0/BSR1 all-ones,
// ROMLMAP clear (so ROM is visible at virtual 0), and a zeroed map RAM.
// The FDC is left attached but is reset alongside.
func (m *Machine) Reset() {
	m.genstat, m.bsr0, m.bsr1 = 0xFFFF, 0xFFFF, 0xFFFF
	m.romlmap = false
	m.pie = false
	m.leds = 0
	m.dmaCount, m.dmaAddress = 0, 0
	m.idmarw, m.dmaen, m.dmaReading = false, false, false

	if m.mapRAM != nil {
		for i := range m.mapRAM.Bytes() {
			m.mapRAM.Bytes()[i] = 0
		}
	}
	for _, c := range m.chips {
		c.Reset()
	}
}

// GENSTAT, BSR0 and BSR1 expose the fault registers for tests and
// diagnostics; guest code reads them through the bus, not this API.
func (m *Machine) GENSTAT() uint16 { return m.genstat }
func (m *Machine) BSR0() uint16    { return m.bsr0 }
func (m *Machine) BSR1() uint16    { return m.bsr1 }

// LEDs returns the 4-bit front-panel LED state as last written through
// MISCCON.
func (m *Machine) LEDs() byte { return m.leds }

// MapEntry returns the raw 16-bit map RAM entry for a page, for tests that
// want to set up or inspect page table state directly.
func (m *Machine) MapEntry(page uint32) uint16 {
	return m.mapRAM.Read16(page * 2)
}

// SetMapEntry writes a raw map RAM entry, for test setup.
func (m *Machine) SetMapEntry(page uint32, entry uint16) {
	m.mapRAM.Write16(page*2, entry)
}
