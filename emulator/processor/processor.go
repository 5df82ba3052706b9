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

// Package processor describes the narrow surface the core expects from the
// 68010 CPU interpreter it is embedded in. The CPU itself is out of scope
// here; this package only carries the callback contract it must satisfy.
package processor

// Host is implemented by the CPU core and called back into by the bus and
// the FDC. It is the only direction of control that flows from this module
// out to its caller.
type Host interface {
	// PulseBusError signals a bus-error fault on the instruction currently
	// executing. The bus calls this once per faulting access, after it has
	// finished updating GENSTAT/BSR0/BSR1.
	PulseBusError()

	// GetStatusRegister returns the CPU's live status register, so the
	// access checker can read the supervisor bit (0x2000) without the core
	// needing to mirror CPU mode state of its own.
	GetStatusRegister() uint16

	// EndTimeslice asks the enclosing tick loop to stop executing
	// instructions and re-poll IRQ lines at the next opportunity. The FDC
	// calls this on every register access (see fdc.Host).
	EndTimeslice()
}

// NullHost is a Host with no CPU behind it, useful for constructing a
// Machine in contexts (tests, the loader CLI) that don't drive real
// instruction execution. Its zero value reports user mode; set SR's
// Supervisor bit directly for callers that want every bus access allowed.
type NullHost struct {
	BusErrors int
	SR        StatusRegister
}

// NewNullHost returns a NullHost already in supervisor mode, so a bare
// Machine can be poked at directly without tripping the access checker.
func NewNullHost() *NullHost {
	return &NullHost{SR: Supervisor}
}

func (h *NullHost) PulseBusError()            { h.BusErrors++ }
func (h *NullHost) GetStatusRegister() uint16 { return uint16(h.SR) }
func (h *NullHost) EndTimeslice()             {}
