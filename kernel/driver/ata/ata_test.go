package ata

import "testing"

// fakeDrive backs outbFn/inbFn/outwFn/inwFn with an in-memory register file
// plus a flat byte-addressable "disk" so Identify/ReadSectors/WriteSectors
// can be exercised without real hardware.
type fakeDrive struct {
	regs [8]uint8
	disk [SectorSizeBytes * 4]byte
	// identify words served once regCommand==cmdIdentify is written
	identifyWords [256]uint16
}

func newFakeDrive(sectorCount uint32, model string) *fakeDrive {
	f := &fakeDrive{}
	f.identifyWords[60] = uint16(sectorCount)
	f.identifyWords[61] = uint16(sectorCount >> 16)
	var mbuf [40]byte
	copy(mbuf[:], model)
	for i := 0; i < 20; i++ {
		f.identifyWords[27+i] = uint16(mbuf[i*2])<<8 | uint16(mbuf[i*2+1])
	}
	return f
}

func (f *fakeDrive) install(t *testing.T) {
	t.Helper()
	origOutb, origInb, origOutw, origInw := outbFn, inbFn, outwFn, inwFn
	t.Cleanup(func() { outbFn, inbFn, outwFn, inwFn = origOutb, origInb, origOutw, origInw })

	dataIdx := 0
	readingIdentify := false
	identifyPos := 0

	outbFn = func(port uint16, val uint8) {
		reg := port - primaryIO
		if port >= primaryCtrl {
			return
		}
		f.regs[reg] = val
		if reg == regCommand {
			switch val {
			case cmdIdentify:
				readingIdentify = true
				identifyPos = 0
			case cmdReadPIO, cmdWritePIO:
				readingIdentify = false
				dataIdx = 0
			}
		}
	}
	inbFn = func(port uint16) uint8 {
		if port >= primaryCtrl {
			return 0 // alt status: never busy
		}
		reg := port - primaryIO
		if reg == regStatus {
			return srDRQ // always ready with data, never an error
		}
		return f.regs[reg]
	}
	outwFn = func(port uint16, val uint16) {
		lba := int(f.regs[regLBA0]) | int(f.regs[regLBA1])<<8 | int(f.regs[regLBA2])<<16
		off := lba*SectorSizeBytes + dataIdx
		f.disk[off] = byte(val)
		f.disk[off+1] = byte(val >> 8)
		dataIdx += 2
	}
	inwFn = func(port uint16) uint16 {
		if readingIdentify {
			w := f.identifyWords[identifyPos]
			identifyPos++
			return w
		}
		lba := int(f.regs[regLBA0]) | int(f.regs[regLBA1])<<8 | int(f.regs[regLBA2])<<16
		off := lba*SectorSizeBytes + dataIdx
		v := uint16(f.disk[off]) | uint16(f.disk[off+1])<<8
		dataIdx += 2
		return v
	}
}

func TestIdentifyReadsModelAndSectorCount(t *testing.T) {
	f := newFakeDrive(8192, "QEMU HARDDISK")
	f.install(t)

	d, err := Identify(0, 0)
	if err != nil {
		t.Fatalf("Identify() error: %v", err)
	}
	if d.SectorCount() != 8192 {
		t.Fatalf("SectorCount() = %d, want 8192", d.SectorCount())
	}
	if d.model != "QEMU HARDDISK" {
		t.Fatalf("model = %q, want %q", d.model, "QEMU HARDDISK")
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	f := newFakeDrive(16, "TESTDISK")
	f.install(t)

	d, err := Identify(0, 0)
	if err != nil {
		t.Fatalf("Identify() error: %v", err)
	}

	want := make([]byte, SectorSizeBytes)
	for i := range want {
		want[i] = byte(i)
	}
	if err := d.WriteSectors(0, 1, want); err != nil {
		t.Fatalf("WriteSectors() error: %v", err)
	}

	got := make([]byte, SectorSizeBytes)
	if err := d.ReadSectors(0, 1, got); err != nil {
		t.Fatalf("ReadSectors() error: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}
