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

// translate implements the Address Mapper. For addr < 0x400000
// it walks the map RAM, promotes the referenced/dirty bits in place, and
// puts the physical page above the low 12 bits of addr. Addresses at or
// above 0x400000 pass through untouched.
func (m *Machine) translate(addr uint32, writing bool) uint32 {
	if addr >= 0x400000 {
		return addr
	}

	page := (addr >> 12) & 0x3FF
	entryOff := page * 2
	entry := m.mapRAM.Read16(entryOff)
	physPage := uint32(entry) & 0x3FF

	pagebits := (entry >> 13) & 0x03
	if pagebits != 0 {
		hiByteOff := entryOff // high byte of the big-endian entry
		if writing {
			m.mapRAM.Write8(hiByteOff, m.mapRAM.Read8(hiByteOff)|0x60)
		} else {
			m.mapRAM.Write8(hiByteOff, m.mapRAM.Read8(hiByteOff)|0x40)
		}
	}

	return (physPage << 12) | (addr & 0xFFF)
}
