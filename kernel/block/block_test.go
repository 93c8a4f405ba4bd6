package block

import (
	"testing"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
)

type fakeDevice struct {
	sectorSize  uint32
	sectorCount uint64
}

func (f *fakeDevice) Info() Info {
	return Info{Name: "fake", SectorSize: f.sectorSize, SectorCount: f.sectorCount}
}
func (f *fakeDevice) SectorSize() uint32  { return f.sectorSize }
func (f *fakeDevice) SectorCount() uint64 { return f.sectorCount }
func (f *fakeDevice) ReadSectors(lba uint64, n uint32, buf []byte) *kernel.Error  { return nil }
func (f *fakeDevice) WriteSectors(lba uint64, n uint32, buf []byte) *kernel.Error { return nil }
func (f *fakeDevice) Flush() *kernel.Error                                        { return nil }

func TestRegisterAssignsClassCounterNames(t *testing.T) {
	Reset()
	defer Reset()

	dev := &fakeDevice{sectorSize: 512, sectorCount: 1000}

	name0, err := Register(ClassATA, dev)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if name0 != "hda" {
		t.Fatalf("expected first ATA device named hda, got %q", name0)
	}

	name1, err := Register(ClassATA, dev)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if name1 != "hdb" {
		t.Fatalf("expected second ATA device named hdb, got %q", name1)
	}

	nameSata, err := Register(ClassSATA, dev)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if nameSata != "sda" {
		t.Fatalf("expected first SATA device named sda, got %q", nameSata)
	}
}

func TestRegisterClassCountersAreIndependent(t *testing.T) {
	Reset()
	defer Reset()

	dev := &fakeDevice{}
	Register(ClassATA, dev)
	Register(ClassRAM, dev)

	name, _ := Register(ClassATA, dev)
	if name != "hdb" {
		t.Fatalf("expected ATA counter to advance independently of RAM counter, got %q", name)
	}
}

func TestRamAndAtapiUseIntegerSuffixes(t *testing.T) {
	Reset()
	defer Reset()

	dev := &fakeDevice{}
	name0, _ := Register(ClassRAM, dev)
	name1, _ := Register(ClassRAM, dev)
	if name0 != "rd0" || name1 != "rd1" {
		t.Fatalf("expected rd0, rd1, got %q, %q", name0, name1)
	}

	cdName, _ := Register(ClassATAPI, dev)
	if cdName != "cd0" {
		t.Fatalf("expected cd0, got %q", cdName)
	}
}

func TestRegisterTableFull(t *testing.T) {
	Reset()
	defer Reset()

	dev := &fakeDevice{}
	for i := 0; i < MaxDevices; i++ {
		if _, err := Register(ClassRAM, dev); err != nil {
			t.Fatalf("unexpected error filling table at %d: %v", i, err)
		}
	}

	if _, err := Register(ClassRAM, dev); err != ErrTableFull {
		t.Fatalf("expected ErrTableFull once registry is saturated, got %v", err)
	}
}

func TestRegisterNamedAndLookup(t *testing.T) {
	Reset()
	defer Reset()

	dev := &fakeDevice{sectorCount: 2048}
	if err := RegisterNamed("hda1", dev); err != nil {
		t.Fatalf("RegisterNamed: %v", err)
	}

	got, ok := Lookup("hda1")
	if !ok {
		t.Fatal("expected to find hda1 in the registry")
	}
	if got != dev {
		t.Fatal("Lookup returned a different device than was registered")
	}

	if _, ok := Lookup("hda2"); ok {
		t.Fatal("Lookup found a device that was never registered")
	}
}

func TestCountAndIterationHelpers(t *testing.T) {
	Reset()
	defer Reset()

	dev := &fakeDevice{}
	Register(ClassATA, dev)
	Register(ClassATA, dev)

	if Count() != 2 {
		t.Fatalf("expected Count()==2, got %d", Count())
	}
	if NameAt(0) != "hda" || NameAt(1) != "hdb" {
		t.Fatalf("unexpected names: %q, %q", NameAt(0), NameAt(1))
	}
	if DeviceAt(0) != dev {
		t.Fatal("DeviceAt(0) did not return the registered device")
	}
}

func TestResetClearsRegistryAndCounters(t *testing.T) {
	Reset()
	dev := &fakeDevice{}
	Register(ClassATA, dev)

	Reset()

	if Count() != 0 {
		t.Fatalf("expected Count()==0 after Reset, got %d", Count())
	}
	name, err := Register(ClassATA, dev)
	if err != nil {
		t.Fatalf("Register after Reset: %v", err)
	}
	if name != "hda" {
		t.Fatalf("expected class counters to restart at hda after Reset, got %q", name)
	}
}
