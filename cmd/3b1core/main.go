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

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"

	"github.com/threeb1/corevm/emulator/machine"
	"github.com/threeb1/corevm/emulator/processor"
)

var (
	romPath    string
	floppyPath string
	readOnly   bool
	secSize    int
	spt        int
	heads      int
	dumpMap    bool
)

func init() {
	flag.StringVar(&romPath, "rom", "", "Boot ROM image")
	flag.StringVar(&floppyPath, "floppy", "", "Floppy disk image")
	flag.BoolVar(&readOnly, "ro", false, "Mount the floppy image write-protected")
	flag.IntVar(&secSize, "sector-size", 512, "Floppy sector size in bytes")
	flag.IntVar(&spt, "sectors-per-track", 10, "Floppy sectors per track")
	flag.IntVar(&heads, "heads", 1, "Floppy head count")
	flag.BoolVar(&dumpMap, "dump-map", false, "Print GENSTAT/BSR0/BSR1 and exit")
}

func main() {
	flag.Parse()

	host := processor.NewNullHost()
	m := machine.New(host)

	if romPath != "" {
		rom, err := os.ReadFile(romPath)
		if err != nil {
			log.Fatalf("3b1core: reading ROM: %v", err)
		}
		m.LoadROM(rom)
	}

	if floppyPath != "" {
		if err := attachFloppy(m, floppyPath); err != nil {
			log.Fatalf("3b1core: attaching floppy: %v", err)
		}
	}

	if dumpMap {
		fmt.Printf("GENSTAT=0x%04X BSR0=0x%04X BSR1=0x%04X LEDs=0x%X\n",
			m.GENSTAT(), m.BSR0(), m.BSR1(), m.LEDs())
		return
	}

	fmt.Println("3b1core: memory/bus/FDC core initialized; no CPU attached.")
}

// attachFloppy opens the image through afero so test harnesses and real
// disk files share the same loading path, and hands it to the FDC.
func attachFloppy(m *machine.Machine, path string) error {
	fs := afero.NewOsFs()
	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}
	f, err := fs.OpenFile(path, flags, 0)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	return m.FDC.Load(f, info.Size(), secSize, spt, heads, !readOnly)
}
