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

import "github.com/threeb1/corevm/emulator/processor"

// Verdict is the outcome of a single bus-cycle permission check.
type Verdict int

const (
	Allowed Verdict = iota
	PageFault
	UIE
	Kernel
	PageNoWE
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "ALLOWED"
	case PageFault:
		return "PAGEFAULT"
	case UIE:
		return "UIE"
	case Kernel:
		return "KERNEL"
	case PageNoWE:
		return "PAGE_NO_WE"
	default:
		return "UNKNOWN"
	}
}

// checkAccess implements the Access Checker. addr has already
// had the ROM-overlay bit applied by the caller.
func (m *Machine) checkAccess(addr uint32, writing bool) Verdict {
	sr := processor.StatusRegister(m.host.GetStatusRegister())
	if sr.IsSupervisor() {
		return Allowed
	}

	if addr >= 0x400000 {
		return UIE
	}

	page := (addr >> 12) & 0x3FF
	entry := m.mapRAM.Read16(page * 2)
	pagebits := (entry >> 13) & 0x07

	if pagebits&0x03 == 0 {
		return PageFault
	}

	// Kernel-reserved first 512 KiB: A19-A22 all low.
	if (addr>>19)&0x0F == 0 {
		return Kernel
	}

	if writing && pagebits&0x04 == 0 {
		return PageNoWE
	}

	return Allowed
}
