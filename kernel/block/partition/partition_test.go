package partition

import (
	"encoding/binary"
	"testing"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/block"
)

// memDisk is an in-memory block.Device backing a fixed number of sectors,
// used to feed Scan/Device known sector images without real hardware.
type memDisk struct {
	sectors [][sectorSize]byte
}

func newMemDisk(n int) *memDisk {
	return &memDisk{sectors: make([][sectorSize]byte, n)}
}

func (m *memDisk) Info() block.Info {
	return block.Info{SectorSize: sectorSize, SectorCount: uint64(len(m.sectors))}
}
func (m *memDisk) SectorSize() uint32  { return sectorSize }
func (m *memDisk) SectorCount() uint64 { return uint64(len(m.sectors)) }

func (m *memDisk) ReadSectors(lba uint64, n uint32, buf []byte) *kernel.Error {
	for i := uint32(0); i < n; i++ {
		if int(lba)+int(i) >= len(m.sectors) {
			return ErrOutOfRange
		}
		copy(buf[int(i)*sectorSize:], m.sectors[int(lba)+int(i)][:])
	}
	return nil
}

func (m *memDisk) WriteSectors(lba uint64, n uint32, buf []byte) *kernel.Error {
	for i := uint32(0); i < n; i++ {
		if int(lba)+int(i) >= len(m.sectors) {
			return ErrOutOfRange
		}
		copy(m.sectors[int(lba)+int(i)][:], buf[int(i)*sectorSize:(int(i)+1)*sectorSize])
	}
	return nil
}

func (m *memDisk) Flush() *kernel.Error { return nil }

func writeMBREntry(sector []byte, slot int, bootable bool, typ uint8, startLBA, count uint32) {
	off := 446 + slot*16
	if bootable {
		sector[off] = 0x80
	}
	sector[off+4] = typ
	binary.LittleEndian.PutUint32(sector[off+8:off+12], startLBA)
	binary.LittleEndian.PutUint32(sector[off+12:off+16], count)
}

func TestScanMBRSinglePrimaryPartition(t *testing.T) {
	disk := newMemDisk(4)
	writeMBREntry(disk.sectors[0][:], 0, true, 0x0C, 2048, 1024)
	binary.LittleEndian.PutUint16(disk.sectors[0][510:512], 0x55AA)

	var entries [8]Entry
	n, err := Scan(disk, entries[:])
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 partition, got %d", n)
	}
	if entries[0].StartLBA != 2048 || entries[0].SectorCount != 1024 {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].MBRType != 0x0C || !entries[0].Bootable {
		t.Fatalf("unexpected entry flags: %+v", entries[0])
	}
}

func TestScanMBRNoSignatureReturnsErrNoTable(t *testing.T) {
	disk := newMemDisk(1)

	var entries [8]Entry
	_, err := Scan(disk, entries[:])
	if err != ErrNoTable {
		t.Fatalf("expected ErrNoTable for a sector with no 0x55AA signature, got %v", err)
	}
}

func TestScanMBRSkipsEmptySlots(t *testing.T) {
	disk := newMemDisk(4)
	writeMBREntry(disk.sectors[0][:], 1, false, 0x83, 100, 200)
	binary.LittleEndian.PutUint16(disk.sectors[0][510:512], 0x55AA)

	var entries [8]Entry
	n, err := Scan(disk, entries[:])
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the populated slot to surface, got %d entries", n)
	}
	if entries[0].Index != 1 {
		t.Fatalf("expected surfaced entry to report its original slot index 1, got %d", entries[0].Index)
	}
}

func TestScanExtendedWalksEBRChain(t *testing.T) {
	disk := newMemDisk(8)

	// Primary MBR: one extended partition starting at LBA 4.
	writeMBREntry(disk.sectors[0][:], 0, false, 0x05, 4, 4)
	binary.LittleEndian.PutUint16(disk.sectors[0][510:512], 0x55AA)

	// First EBR at LBA 4: one logical partition, plus a link to the next EBR.
	writeMBREntry(disk.sectors[4][:], 0, false, 0x83, 2, 1)
	writeMBREntry(disk.sectors[4][:], 1, false, 0x05, 2, 1) // next EBR at extendedStart+2 = 6
	binary.LittleEndian.PutUint16(disk.sectors[4][510:512], 0x55AA)

	// Second EBR at LBA 6: one logical partition, no further link.
	writeMBREntry(disk.sectors[6][:], 0, false, 0x83, 2, 1)
	binary.LittleEndian.PutUint16(disk.sectors[6][510:512], 0x55AA)

	var entries [8]Entry
	n, err := Scan(disk, entries[:])
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 logical partitions from the EBR chain, got %d", n)
	}
	if entries[0].Index != 5 || entries[1].Index != 6 {
		t.Fatalf("expected logical partitions numbered from 5, got %d, %d", entries[0].Index, entries[1].Index)
	}
}

func TestScanGPTHeaderAndEntries(t *testing.T) {
	disk := newMemDisk(40)
	mbr := disk.sectors[0][:]
	writeMBREntry(mbr, 0, false, 0xEE, 1, 39)
	binary.LittleEndian.PutUint16(mbr[510:512], 0x55AA)

	hdr := disk.sectors[1][:]
	copy(hdr[0:8], "EFI PART")
	binary.LittleEndian.PutUint64(hdr[72:80], 2)  // partition entry array LBA
	binary.LittleEndian.PutUint32(hdr[80:84], 1)  // entry count
	binary.LittleEndian.PutUint32(hdr[84:88], 128) // entry size

	entry := disk.sectors[2][:128]
	var typeGUID [16]byte
	typeGUID[0] = 0xAB
	copy(entry[0:16], typeGUID[:])
	binary.LittleEndian.PutUint64(entry[32:40], 10) // first LBA
	binary.LittleEndian.PutUint64(entry[40:48], 19) // last LBA

	var entries [8]Entry
	n, err := Scan(disk, entries[:])
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 GPT partition, got %d", n)
	}
	if !entries[0].IsGPT {
		t.Fatal("expected IsGPT to be set for a GPT-scanned entry")
	}
	if entries[0].StartLBA != 10 || entries[0].SectorCount != 10 {
		t.Fatalf("unexpected GPT entry: %+v", entries[0])
	}
}

func TestDeviceForwardsWithLBAOffset(t *testing.T) {
	disk := newMemDisk(16)
	want := [sectorSize]byte{}
	for i := range want {
		want[i] = 0x42
	}
	disk.sectors[10] = want

	pdev := NewDevice("hda1", disk, 8, 4)

	var buf [sectorSize]byte
	if err := pdev.ReadSectors(2, 1, buf[:]); err != nil {
		t.Fatalf("ReadSectors: %v", err)
	}
	if buf != want {
		t.Fatal("expected partition-relative LBA 2 to read parent LBA 10 (start 8 + 2)")
	}
}

func TestDeviceRejectsOutOfRangeAccess(t *testing.T) {
	disk := newMemDisk(16)
	pdev := NewDevice("hda1", disk, 8, 4)

	var buf [sectorSize]byte
	if err := pdev.ReadSectors(4, 1, buf[:]); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange reading past the partition's SectorCount, got %v", err)
	}
}

func TestDeviceSectorCountReflectsPartitionNotParent(t *testing.T) {
	disk := newMemDisk(16)
	pdev := NewDevice("hda1", disk, 8, 4)

	if pdev.SectorCount() != 4 {
		t.Fatalf("expected partition SectorCount to be its own span, got %d", pdev.SectorCount())
	}
}
