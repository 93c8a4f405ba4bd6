// Package partition scans a whole block device's sector 0 (and, for GPT,
// sector 1) for a partition table and registers a child block.Device per
// partition entry, forwarding sector I/O to the parent device with an LBA
// offset added. MBR/GPT signature offsets follow spec.md §6 and
// original_source/kernel/drivers/storage/ata.cpp's partition-table reader;
// on-disk little-endian struct decoding follows the idiom in
// other_examples' FAT/partition ports (binary.LittleEndian field reads
// rather than a packed-struct cast, since Go struct layout is not
// guaranteed to match the wire format).
package partition

import (
	"encoding/binary"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/block"
)

const sectorSize = 512

var (
	ErrNoTable    = &kernel.Error{Module: "partition", Message: "no valid partition table found"}
	ErrOutOfRange = &kernel.Error{Module: "partition", Message: "sector range out of bounds"}
)

// Entry describes one discovered partition (spec.md §3).
type Entry struct {
	Index       int
	StartLBA    uint64
	SectorCount uint64
	SizeBytes   uint64
	MBRType     uint8
	GPTTypeGUID [16]byte
	IsGPT       bool
	Bootable    bool
	Label       string
}

// maxLogical bounds the EBR chain walk for extended MBR partitions.
const maxLogical = 32

// Scan reads sector 0 (and sector 1 for GPT) of dev and returns the
// discovered partitions, at most len(out) of them. It does not register them
// with the block registry; the caller (kmain) registers each returned Entry
// itself.
func Scan(dev block.Device, out []Entry) (int, *kernel.Error) {
	var sector [sectorSize]byte
	if err := dev.ReadSectors(0, 1, sector[:]); err != nil {
		return 0, err
	}

	if binary.LittleEndian.Uint16(sector[510:512]) != 0x55AA {
		return 0, ErrNoTable
	}

	if sector[446+4] == 0xEE {
		return scanGPT(dev, out)
	}
	return scanMBR(dev, sector[:], out)
}

func mbrEntry(raw []byte) (typ uint8, startLBA, count uint32, bootable bool) {
	bootable = raw[0] == 0x80
	typ = raw[4]
	startLBA = binary.LittleEndian.Uint32(raw[8:12])
	count = binary.LittleEndian.Uint32(raw[12:16])
	return
}

func scanMBR(dev block.Device, sector []byte, out []Entry) (int, *kernel.Error) {
	n := 0
	for i := 0; i < 4 && n < len(out); i++ {
		raw := sector[446+i*16 : 446+(i+1)*16]
		typ, start, count, bootable := mbrEntry(raw)
		if typ == 0 {
			continue
		}
		if typ == 0x05 || typ == 0x0F {
			added, err := scanExtended(dev, uint64(start), out[n:])
			if err != nil {
				return n, err
			}
			n += added
			continue
		}
		out[n] = Entry{
			Index:       i,
			StartLBA:    uint64(start),
			SectorCount: uint64(count),
			SizeBytes:   uint64(count) * sectorSize,
			MBRType:     typ,
			Bootable:    bootable,
		}
		n++
	}
	return n, nil
}

// scanExtended follows the EBR (extended boot record) chain, emitting
// logical partitions numbered from 5 upward with a safety cap of
// maxLogical entries (spec.md §4.6).
func scanExtended(dev block.Device, extendedStart uint64, out []Entry) (int, *kernel.Error) {
	n := 0
	nextEBR := extendedStart
	logicalIndex := 5

	for i := 0; i < maxLogical && n < len(out); i++ {
		var sector [sectorSize]byte
		if err := dev.ReadSectors(nextEBR, 1, sector[:]); err != nil {
			return n, err
		}
		if binary.LittleEndian.Uint16(sector[510:512]) != 0x55AA {
			break
		}

		typ, start, count, bootable := mbrEntry(sector[446:462])
		if typ == 0 {
			break
		}

		out[n] = Entry{
			Index:       logicalIndex,
			StartLBA:    extendedStart + uint64(start),
			SectorCount: uint64(count),
			SizeBytes:   uint64(count) * sectorSize,
			MBRType:     typ,
			Bootable:    bootable,
		}
		n++
		logicalIndex++

		// Second entry in the EBR, if present, points to the next EBR
		// relative to the start of the extended partition.
		typ2, start2, _, _ := mbrEntry(sector[462:478])
		if typ2 == 0x05 || typ2 == 0x0F {
			nextEBR = extendedStart + uint64(start2)
		} else {
			break
		}
	}
	return n, nil
}

const gptHeaderLBA = 1

func scanGPT(dev block.Device, out []Entry) (int, *kernel.Error) {
	var hdr [sectorSize]byte
	if err := dev.ReadSectors(gptHeaderLBA, 1, hdr[:]); err != nil {
		return 0, err
	}
	if string(hdr[0:8]) != "EFI PART" {
		return 0, ErrNoTable
	}

	entryLBA := binary.LittleEndian.Uint64(hdr[72:80])
	entryCount := binary.LittleEndian.Uint32(hdr[80:84])
	entrySize := binary.LittleEndian.Uint32(hdr[84:88])
	if entrySize == 0 {
		entrySize = 128
	}

	entriesPerSector := sectorSize / entrySize
	n := 0
	var sector [sectorSize]byte
	for i := uint32(0); i < entryCount && n < len(out); i++ {
		sectorIdx := i / entriesPerSector
		offsetInSector := (i % entriesPerSector) * entrySize

		if offsetInSector == 0 {
			if err := dev.ReadSectors(entryLBA+uint64(sectorIdx), 1, sector[:]); err != nil {
				return n, err
			}
		}

		raw := sector[offsetInSector : offsetInSector+entrySize]
		var typeGUID [16]byte
		copy(typeGUID[:], raw[0:16])
		if isZeroGUID(typeGUID) {
			continue
		}

		start := binary.LittleEndian.Uint64(raw[32:40])
		last := binary.LittleEndian.Uint64(raw[40:48])
		count := last - start + 1

		out[n] = Entry{
			Index:       int(i),
			StartLBA:    start,
			SectorCount: count,
			SizeBytes:   count * sectorSize,
			GPTTypeGUID: typeGUID,
			IsGPT:       true,
		}
		n++
	}
	return n, nil
}

func isZeroGUID(g [16]byte) bool {
	for _, b := range g {
		if b != 0 {
			return false
		}
	}
	return true
}

// Device wraps a parent block.Device, exposing only the [start, start+count)
// LBA range as its own address space. Reads/writes past SectorCount return
// ErrOutOfRange; everything else is forwarded to the parent with start
// added to the LBA, per spec.md §4.6's "partition device forwards reads and
// writes to its parent with the start LBA added" rule.
type Device struct {
	parent block.Device
	name   string
	start  uint64
	count  uint64
}

// NewDevice constructs a partition device over [start, start+count) sectors
// of parent.
func NewDevice(name string, parent block.Device, start, count uint64) *Device {
	return &Device{parent: parent, name: name, start: start, count: count}
}

func (d *Device) Info() block.Info {
	return block.Info{Name: d.name, SectorSize: d.parent.SectorSize(), SectorCount: d.count}
}

func (d *Device) SectorSize() uint32  { return d.parent.SectorSize() }
func (d *Device) SectorCount() uint64 { return d.count }

func (d *Device) checkRange(lba uint64, n uint32) *kernel.Error {
	if lba+uint64(n) > d.count {
		return ErrOutOfRange
	}
	return nil
}

func (d *Device) ReadSectors(lba uint64, n uint32, buf []byte) *kernel.Error {
	if err := d.checkRange(lba, n); err != nil {
		return err
	}
	return d.parent.ReadSectors(d.start+lba, n, buf)
}

func (d *Device) WriteSectors(lba uint64, n uint32, buf []byte) *kernel.Error {
	if err := d.checkRange(lba, n); err != nil {
		return err
	}
	return d.parent.WriteSectors(d.start+lba, n, buf)
}

func (d *Device) Flush() *kernel.Error { return d.parent.Flush() }
