// Package ata implements a 28-bit LBA PIO ATA/IDE driver, grounded on
// original_source/kernel/drivers/storage/ata.cpp's register layout, reset
// sequence and IDENTIFY/read/write command shape. Drive implements
// kernel/block.Device so it can be registered directly into the block
// registry under the canonical "hdN" names spec.md §4.6 requires.
package ata

import (
	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/block"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"
)

const (
	primaryIO     = 0x1F0
	primaryCtrl   = 0x3F6
	secondaryIO   = 0x170
	secondaryCtrl = 0x376

	regData      = 0
	regError     = 1
	regFeatures  = 1
	regSecCount  = 2
	regLBA0      = 3
	regLBA1      = 4
	regLBA2      = 5
	regHDDevSel  = 6
	regCommand   = 7
	regStatus    = 7
	regAltStatus = 0
	regDevCtrl   = 0

	cmdReadPIO    = 0x20
	cmdWritePIO   = 0x30
	cmdIdentify   = 0xEC
	cmdCacheFlush = 0xE7

	srBSY = 0x80
	srDRQ = 0x08
	srERR = 0x01
	srDF  = 0x20

	SectorSizeBytes = 512
)

var (
	outbFn = cpu.Outb
	inbFn  = cpu.Inb
	outwFn = cpu.Outw
	inwFn  = cpu.Inw
)

var (
	ErrNotPresent = &kernel.Error{Module: "ata", Message: "drive not present"}
	ErrTimeout    = &kernel.Error{Module: "ata", Message: "drive timed out"}
	ErrIO         = &kernel.Error{Module: "ata", Message: "drive reported an I/O error"}
)

// Drive is one ATA PIO drive addressed by channel (0=primary, 1=secondary)
// and slave bit (0=master, 1=slave). It implements block.Device.
type Drive struct {
	channel     uint8
	slave       uint8
	sectorCount uint64
	model       string
}

func ioBase(channel uint8) uint16 {
	if channel == 0 {
		return primaryIO
	}
	return secondaryIO
}

func ctrlBase(channel uint8) uint16 {
	if channel == 0 {
		return primaryCtrl
	}
	return secondaryCtrl
}

func delay400ns(channel uint8) {
	ctrl := ctrlBase(channel)
	for i := 0; i < 4; i++ {
		inbFn(ctrl + regAltStatus)
	}
}

func waitReady(channel uint8) bool {
	io := ioBase(channel)
	for i := 0; i < 2000000; i++ {
		if inbFn(io+regStatus)&srBSY == 0 {
			return true
		}
	}
	return false
}

func waitDRQ(channel uint8) (ok bool, ioErr bool) {
	io := ioBase(channel)
	for i := 0; i < 2000000; i++ {
		status := inbFn(io + regStatus)
		if status&(srERR|srDF) != 0 {
			return false, true
		}
		if status&srBSY == 0 && status&srDRQ != 0 {
			return true, false
		}
	}
	return false, false
}

func softReset(channel uint8) {
	ctrl := ctrlBase(channel)
	outbFn(ctrl+regDevCtrl, 0x04)
	delay400ns(channel)
	outbFn(ctrl+regDevCtrl, 0x00)
	delay400ns(channel)
	waitReady(channel)
}

func selectDrive(channel, slave uint8, lba uint32, lbaMode bool) {
	io := ioBase(channel)
	head := uint8(0)
	if lbaMode {
		head = uint8(lba>>24) & 0x0F
	}
	sel := uint8(0xA0) | (slave << 4)
	if lbaMode {
		sel |= 0x40
	}
	sel |= head
	outbFn(io+regHDDevSel, sel)
	delay400ns(channel)
}

// Identify probes channel/slave with IDENTIFY DEVICE and returns a ready
// Drive, or ErrNotPresent if nothing answers.
func Identify(channel, slave uint8) (*Drive, *kernel.Error) {
	io := ioBase(channel)

	selectDrive(channel, slave, 0, false)
	outbFn(io+regSecCount, 0)
	outbFn(io+regLBA0, 0)
	outbFn(io+regLBA1, 0)
	outbFn(io+regLBA2, 0)
	outbFn(io+regCommand, cmdIdentify)

	if inbFn(io+regStatus) == 0 {
		return nil, ErrNotPresent
	}

	if !waitReady(channel) {
		return nil, ErrTimeout
	}
	if inbFn(io+regLBA1) != 0 || inbFn(io+regLBA2) != 0 {
		return nil, ErrNotPresent // ATAPI or SATA signature, not a PATA disk
	}

	ok, ioErr := waitDRQ(channel)
	if ioErr {
		return nil, ErrIO
	}
	if !ok {
		return nil, ErrTimeout
	}

	var words [256]uint16
	for i := range words {
		words[i] = inwFn(io + regData)
	}

	sectors := uint64(words[60]) | uint64(words[61])<<16

	return &Drive{channel: channel, slave: slave, sectorCount: sectors, model: decodeModel(words[27:47])}, nil
}

// decodeModel un-byte-swaps the ATA IDENTIFY model-name field (each word
// stores its two characters big-endian relative to transfer order) into a
// trimmed string.
func decodeModel(words []uint16) string {
	var buf [40]byte
	for i, w := range words {
		buf[i*2] = byte(w >> 8)
		buf[i*2+1] = byte(w)
	}
	end := len(buf)
	for end > 0 && (buf[end-1] == ' ' || buf[end-1] == 0) {
		end--
	}
	return string(buf[:end])
}

func (d *Drive) Info() block.Info {
	return block.Info{Name: d.model, SectorSize: SectorSizeBytes, SectorCount: d.sectorCount}
}

func (d *Drive) SectorSize() uint32  { return SectorSizeBytes }
func (d *Drive) SectorCount() uint64 { return d.sectorCount }

func (d *Drive) ReadSectors(lba uint64, n uint32, buf []byte) *kernel.Error {
	if uint64(len(buf)) < uint64(n)*SectorSizeBytes {
		return &kernel.Error{Module: "ata", Message: "buffer too small"}
	}
	io := ioBase(d.channel)

	if !waitReady(d.channel) {
		return ErrTimeout
	}
	selectDrive(d.channel, d.slave, uint32(lba), true)
	outbFn(io+regSecCount, uint8(n))
	outbFn(io+regLBA0, uint8(lba))
	outbFn(io+regLBA1, uint8(lba>>8))
	outbFn(io+regLBA2, uint8(lba>>16))
	outbFn(io+regCommand, cmdReadPIO)

	for s := uint32(0); s < uint32(n); s++ {
		ok, ioErr := waitDRQ(d.channel)
		if ioErr {
			return ErrIO
		}
		if !ok {
			return ErrTimeout
		}
		off := int(s) * SectorSizeBytes
		for i := 0; i < SectorSizeBytes/2; i++ {
			w := inwFn(io + regData)
			buf[off+i*2] = byte(w)
			buf[off+i*2+1] = byte(w >> 8)
		}
	}
	return nil
}

func (d *Drive) WriteSectors(lba uint64, n uint32, buf []byte) *kernel.Error {
	if uint64(len(buf)) < uint64(n)*SectorSizeBytes {
		return &kernel.Error{Module: "ata", Message: "buffer too small"}
	}
	io := ioBase(d.channel)

	if !waitReady(d.channel) {
		return ErrTimeout
	}
	selectDrive(d.channel, d.slave, uint32(lba), true)
	outbFn(io+regSecCount, uint8(n))
	outbFn(io+regLBA0, uint8(lba))
	outbFn(io+regLBA1, uint8(lba>>8))
	outbFn(io+regLBA2, uint8(lba>>16))
	outbFn(io+regCommand, cmdWritePIO)

	for s := uint32(0); s < uint32(n); s++ {
		ok, ioErr := waitDRQ(d.channel)
		if ioErr {
			return ErrIO
		}
		if !ok {
			return ErrTimeout
		}
		off := int(s) * SectorSizeBytes
		for i := 0; i < SectorSizeBytes/2; i++ {
			w := uint16(buf[off+i*2]) | uint16(buf[off+i*2+1])<<8
			outwFn(io+regData, w)
		}
	}
	return d.Flush()
}

func (d *Drive) Flush() *kernel.Error {
	io := ioBase(d.channel)
	outbFn(io+regCommand, cmdCacheFlush)
	if !waitReady(d.channel) {
		return ErrTimeout
	}
	return nil
}
