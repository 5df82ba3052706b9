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

// Package fdc models the WD2797 floppy disk controller: a command-driven
// state machine with a data buffer, CHS geometry, IRQ/DRQ lines, backed by
// a flat sector-image file.
package fdc

import (
	"errors"
	"io"
	"log"
)

// Image is the random-access byte store capability the controller needs
// from a disc image: seek-free reads and writes at an offset. Flushing is
// optional, through Flusher. afero.File and *os.File both satisfy it.
type Image interface {
	io.ReaderAt
	io.WriterAt
}

// Flusher is implemented by images that buffer writes (afero's memory
// filesystem does not need it, but real files do).
type Flusher interface {
	Sync() error
}

var (
	// ErrBadGeometry is returned by Load when the image size doesn't
	// divide evenly into at least one track of the given geometry.
	ErrBadGeometry = errors.New("fdc: image size does not match geometry")
	// ErrNoMemory is returned by Load if the track buffer can't be
	// allocated. In Go this can't actually happen short of an OOM panic,
	// but the distinct error kind is kept so callers can match on it the
	// way the C original's WD2797_ERR_NO_MEMORY did.
	ErrNoMemory = errors.New("fdc: could not allocate track buffer")
)

// Register offsets, addr bits 1-2 of the FDC's I/O window.
const (
	RegStatus = 0
	RegTrack  = 1
	RegSector = 2
	RegData   = 3
)

// Command top-nibble values, written to RegStatus.
const (
	cmdRestore          = 0x0
	cmdSeek             = 0x1
	cmdStep             = 0x2
	cmdStepTU           = 0x3
	cmdStepIn           = 0x4
	cmdStepInTU         = 0x5
	cmdStepOut          = 0x6
	cmdStepOutTU        = 0x7
	cmdReadSector       = 0x8
	cmdReadSectorMulti  = 0x9
	cmdWriteSector      = 0xA
	cmdWriteSectorMulti = 0xB
	cmdReadAddress      = 0xC
	cmdForceInterrupt   = 0xD
	cmdReadTrack        = 0xE
	cmdFormatTrack      = 0xF
)

// Status register bits.
const (
	statusBusy           = 0x01
	statusDRQ            = 0x02
	statusLostData       = 0x04
	statusTrack0         = 0x04
	statusCRCError       = 0x08
	statusRecordNotFound = 0x10
	statusSeekError      = 0x10
	statusWriteProtect   = 0x40
	statusHeadLoaded     = 0x20
	statusNotReady       = 0x80
)

// Host is the callback surface the controller needs from the CPU core it's
// embedded in: every register access ends the current timeslice so the
// enclosing tick loop can re-poll the IRQ line.
type Host interface {
	EndTimeslice()
}

// Controller is one WD2797, plus the geometry and image of whatever disc is
// currently loaded.
type Controller struct {
	host Host

	// Geometry. Tracks is 0 when no image is loaded.
	SectorSize, SectorsPerTrack, Heads, Tracks int

	// Positioning.
	track, head, sector int
	trackReg            byte
	dataReg             byte
	lastStepDir         int

	// Data buffer, sized for one track.
	data    []byte
	dataPos int
	dataLen int

	status      byte
	irq         bool
	cmdHasDRQ   bool
	formatting  bool
	writeable   bool

	// writePos is the byte offset in the image the next buffered write
	// lands at; -1 means "no write in flight".
	writePos int64

	image Image
}

// NewController returns a Controller with no image loaded, wired to host
// for timeslice-end notifications.
func NewController(host Host) *Controller {
	c := &Controller{host: host}
	c.init()
	return c
}

func (c *Controller) init() {
	c.track, c.head, c.sector = 0, 0, 0
	c.trackReg = 0
	c.irq = false
	c.dataPos, c.dataLen = 0, 0
	c.data = nil
	c.status = 0
	c.cmdHasDRQ = false
	c.formatting = false
	c.dataReg = 0
	c.lastStepDir = -1
	c.image = nil
	c.SectorSize, c.SectorsPerTrack, c.Heads, c.Tracks = 0, 0, 0, 0
	c.writePos = -1
}

// Name satisfies peripheral.Chip.
func (c *Controller) Name() string {
	return "WD2797 Floppy Disk Controller"
}

// Reset clears positioning, IRQ and the data buffer without unloading the
// image (so a DISKCON reset pulse doesn't eject the disc).
func (c *Controller) Reset() {
	c.track, c.head, c.sector = 0, 0, 0
	c.trackReg = 0
	c.irq = false
	c.dataPos, c.dataLen = 0, 0
	c.status = 0
	c.dataReg = 0
	c.lastStepDir = -1
	c.writePos = -1
}

// Load attaches a disc image with the given geometry. The image must hold
// at least one whole track; secSize*spt*heads must evenly divide its
// length.
func (c *Controller) Load(img Image, size int64, secSize, sectorsPerTrack, heads int, writeable bool) error {
	trackBytes := secSize * sectorsPerTrack
	tracks := int(size) / trackBytes / heads
	if tracks < 1 || size%int64(trackBytes*heads) != 0 {
		return ErrBadGeometry
	}

	buf := make([]byte, trackBytes)
	if buf == nil {
		return ErrNoMemory
	}

	c.data = buf
	c.image = img
	c.SectorSize = secSize
	c.SectorsPerTrack = sectorsPerTrack
	c.Heads = heads
	c.Tracks = tracks
	c.writeable = writeable
	return nil
}

// Unload detaches the image and clears geometry.
func (c *Controller) Unload() {
	c.data = nil
	c.image = nil
	c.SectorSize, c.SectorsPerTrack, c.Heads, c.Tracks = 0, 0, 0, 0
}

// GetIRQ reports whether the controller has asserted an interrupt since the
// last status read or command write that cleared it.
func (c *Controller) GetIRQ() bool {
	return c.irq
}

// GetDRQ reports whether the controller has a byte ready to transfer (or
// room for one on a write), i.e. data_pos < data_len.
func (c *Controller) GetDRQ() bool {
	return c.dataPos < c.dataLen
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReadRegister reads one of the four addressable registers. Every access
// ends the current CPU timeslice.
func (c *Controller) ReadRegister(reg int) byte {
	c.host.EndTimeslice()

	switch reg & 0x03 {
	case RegStatus:
		return c.readStatus()
	case RegTrack:
		return c.trackReg
	case RegSector:
		return byte(c.sector)
	case RegData:
		return c.readData()
	default:
		return 0xFF
	}
}

func (c *Controller) readStatus() byte {
	// Reading STATUS always clears IRQ.
	c.irq = false

	busy := c.dataPos < c.dataLen
	var temp byte
	if c.cmdHasDRQ {
		temp = c.status &^ 0x03
		if busy {
			temp |= statusDRQ
		}
	} else {
		temp = c.status &^ statusBusy
	}
	if busy {
		// Bit 0x80 mirrors busy here too, matching the hardware quirk the
		// original carries: DMA hasn't drained the buffer yet.
		temp |= 0x80 | statusBusy
	}
	return temp
}

func (c *Controller) readData() byte {
	if c.dataPos < c.dataLen {
		if c.dataPos == c.dataLen-1 {
			c.irq = true
		}
		v := c.data[c.dataPos]
		c.dataPos++
		return v
	}
	return c.dataReg
}

// WriteRegister writes one of the four addressable registers (reg 0 is the
// command register). Every access ends the current CPU timeslice.
func (c *Controller) WriteRegister(reg int, val byte) {
	c.host.EndTimeslice()

	switch reg & 0x03 {
	case RegStatus:
		c.writeCommand(val)
	case RegTrack:
		c.track, c.trackReg = int(val), val
	case RegSector:
		c.sector = int(val)
	case RegData:
		c.writeData(val)
	}
}

func (c *Controller) writeCommand(val byte) {
	c.irq = false

	if c.image == nil {
		c.status = statusNotReady
		c.irq = true
		return
	}

	cmd := (val >> 4) & 0x0F
	if cmd <= cmdStepOutTU {
		// Type-1: drop the previous command's status so only a seek
		// error raised by this command reaches type1Complete.
		c.status = 0
	}
	switch cmd {
	case cmdRestore:
		c.track, c.trackReg = 0, 0
		c.type1Complete()
		return
	case cmdSeek:
		if int(c.dataReg) < c.Tracks {
			c.track, c.trackReg = int(c.dataReg), c.dataReg
		} else {
			c.status = statusSeekError
		}
		c.type1Complete()
		return
	case cmdStep, cmdStepTU:
		c.step(c.lastStepDir, cmd == cmdStepTU)
		c.type1Complete()
		return
	case cmdStepIn, cmdStepInTU:
		c.lastStepDir = 1
		c.step(1, cmd == cmdStepInTU)
		c.type1Complete()
		return
	case cmdStepOut, cmdStepOutTU:
		c.lastStepDir = -1
		c.step(-1, cmd == cmdStepOutTU)
		c.type1Complete()
		return
	}

	// Type 2/3/4 commands all report DRQ.
	c.cmdHasDRQ = true

	if !c.writeable && (cmd == cmdWriteSector || cmd == cmdWriteSectorMulti || cmd == cmdFormatTrack) {
		c.status = statusWriteProtect
		c.irq = true
		return
	}

	switch cmd {
	case cmdReadAddress:
		c.readAddress(val)
	case cmdReadSector, cmdReadSectorMulti:
		c.readSector(val, cmd == cmdReadSectorMulti)
	case cmdWriteSector, cmdWriteSectorMulti:
		c.writeSector(val, cmd == cmdWriteSectorMulti)
	case cmdFormatTrack:
		c.formatTrack(val)
	case cmdReadTrack:
		c.status = statusRecordNotFound
		c.irq = true
	case cmdForceInterrupt:
		c.forceInterrupt(val)
	}
}

// step advances the head by dir (+1/-1), clamping to the geometry and
// setting the seek-error bit if it clamped past the last track (a clamp at
// track 0 sets no error). If updateTrackReg, the track
// register follows the head.
func (c *Controller) step(dir int, updateTrackReg bool) {
	next := c.track + dir
	clamped := clamp(next, 0, c.Tracks-1)
	if clamped != next && next >= c.Tracks {
		c.status = statusSeekError
	}
	c.track = clamped
	if updateTrackReg {
		c.trackReg = byte(c.track)
	}
}

// type1Complete finishes any Type-1 command: cancels in-flight transfers,
// sets the Type-1 status bits, and raises IRQ. A seek error set by the
// command itself (SEEK past the last track, or a STEP that clamped
// upward) survives into the final status byte alongside head-loaded and
// track-0.
func (c *Controller) type1Complete() {
	seekErr := c.status&statusSeekError != 0

	c.dataPos, c.dataLen = 0, 0
	c.cmdHasDRQ = false

	c.status = statusHeadLoaded
	if seekErr {
		c.status |= statusSeekError
	}
	if c.track == 0 {
		c.status |= statusTrack0
	}
	c.irq = true
}

func (c *Controller) readAddress(val byte) {
	c.head = boolToInt(val&0x02 != 0)
	c.dataPos, c.dataLen = 0, 0

	push := func(b byte) {
		c.data[c.dataLen] = b
		c.dataLen++
	}
	push(byte(c.track))
	push(byte(c.head))
	push(byte(c.sector))
	switch c.SectorSize {
	case 128:
		push(0)
	case 256:
		push(1)
	case 512:
		push(2)
	case 1024:
		push(3)
	default:
		push(0xFF)
	}
	push(0)
	push(0)

	c.status = 0
	if c.dataPos < c.dataLen {
		c.status |= statusDRQ
	}
}

func (c *Controller) readSector(val byte, multi bool) {
	c.head = boolToInt(val&0x02 != 0)

	if c.track > c.Tracks-1 || c.head > c.Heads-1 || c.sector == 0 || c.sector > c.SectorsPerTrack {
		c.status = statusRecordNotFound
		c.irq = true
		return
	}

	c.dataPos, c.dataLen = 0, 0

	count := 1
	if multi {
		count = c.SectorsPerTrack
	}
	for i := 0; i < count; i++ {
		lba := int64(c.track*c.Heads*c.SectorsPerTrack+c.head*c.SectorsPerTrack+c.sector-1+i) * int64(c.SectorSize)
		n, err := c.image.ReadAt(c.data[c.dataLen:c.dataLen+c.SectorSize], lba)
		c.dataLen += n
		if err != nil && err != io.EOF {
			log.Printf("fdc: read error at lba=%d: %v", lba, err)
			break
		}
	}

	c.status = 0
	if c.dataPos < c.dataLen {
		c.status |= statusDRQ
	}
}

func (c *Controller) writeSector(val byte, multi bool) {
	c.head = boolToInt(val&0x02 != 0)
	c.dataPos = 0

	count := 1
	if multi {
		count = c.SectorsPerTrack
	}
	c.dataLen = count * c.SectorSize

	lba := int64(c.track*c.Heads*c.SectorsPerTrack+c.head*c.SectorsPerTrack+c.sector-1) * int64(c.SectorSize)
	c.writePos = lba

	c.status = 0
	if c.dataPos < c.dataLen {
		c.status |= statusDRQ
	}
}

func (c *Controller) formatTrack(val byte) {
	c.head = boolToInt(val&0x02 != 0)
	c.status = 0
	c.dataPos = 0
	c.dataLen = 7170
	if c.dataPos < c.dataLen {
		c.status |= statusDRQ
	}
	c.formatting = true
	c.writePos = 0
}

func (c *Controller) forceInterrupt(val byte) {
	c.status = statusHeadLoaded
	if !c.writeable {
		c.status |= statusWriteProtect
	}
	if c.track == 0 {
		c.status |= statusTrack0
	}
	c.dataPos, c.dataLen = 0, 0
	if val&0x08 != 0 {
		c.irq = true
	}
}

func (c *Controller) writeData(val byte) {
	c.dataReg = val

	if c.dataPos < c.dataLen && (c.writePos >= 0 || c.formatting) {
		if !c.formatting {
			c.data[c.dataPos] = val
		}
		c.dataPos++

		if c.dataPos == c.dataLen {
			if !c.formatting {
				if _, err := c.image.WriteAt(c.data[:c.dataLen], c.writePos); err != nil {
					log.Printf("fdc: write error at offset=%d: %v", c.writePos, err)
				} else if f, ok := c.image.(Flusher); ok {
					if err := f.Sync(); err != nil {
						log.Printf("fdc: flush error: %v", err)
					}
				}
			}
			c.irq = true
			c.writePos = -1
			c.formatting = false
		}
	}
}

// DMAMiss is invoked by the DMA engine when it fails to keep up with the
// controller's DRQ. It aborts the in-flight transfer and raises IRQ with
// the lost-data status bit.
func (c *Controller) DMAMiss() {
	c.dataPos = c.dataLen
	c.status = statusLostData
	c.writePos = 0
	c.irq = true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
