// Package block implements the abstract block-device registry named in
// spec.md §4.6: a capability interface any backing store (ATA PIO, a RAM
// disk, a partition carved out of another device) implements, plus a
// registry that assigns canonical names by device-class counter (hda, hdb,
// ..., sda, ..., cd0, ..., rd0, ...). The capability-interface rendition of
// the original's BlockDevice/Partition inheritance hierarchy follows
// spec.md §9's "rephrase inheritance as a capability set" note and the
// teacher's device.Driver probe-dispatch idiom (kernel/hal); naming and
// the PIO command shape are grounded on
// original_source/kernel/drivers/storage/ata.cpp.
package block

import (
	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
)

// Info describes a registered device for diagnostic/listing purposes.
type Info struct {
	Name        string
	SectorSize  uint32
	SectorCount uint64
}

// Device is the capability set every block-device variant (whole-device,
// partition, RAM-disk) implements; it replaces the original's C++
// inheritance hierarchy (spec.md §9).
type Device interface {
	Info() Info
	SectorSize() uint32
	SectorCount() uint64
	ReadSectors(lba uint64, n uint32, buf []byte) *kernel.Error
	WriteSectors(lba uint64, n uint32, buf []byte) *kernel.Error
	Flush() *kernel.Error
}

// Class identifies the device-class counter bucket a device's canonical
// name is drawn from.
type Class uint8

const (
	ClassATA Class = iota
	ClassSATA
	ClassATAPI
	ClassRAM
)

func (c Class) prefix() string {
	switch c {
	case ClassATA:
		return "hd"
	case ClassSATA:
		return "sd"
	case ClassATAPI:
		return "cd"
	case ClassRAM:
		return "rd"
	default:
		return "xx"
	}
}

// suffix returns a device's position within its class, rendered the way the
// reference kernel names devices: letters a, b, c... for hd/sd, and plain
// increasing integers for cd/rd.
func (c Class) suffix(n int) string {
	if c == ClassATAPI || c == ClassRAM {
		return itoa(n)
	}
	return string(rune('a' + n))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Errors reported by the registry.
var (
	ErrTableFull  = &kernel.Error{Module: "block", Message: "device table full"}
	ErrNoDevice   = &kernel.Error{Module: "block", Message: "no such block device"}
	ErrOutOfRange = &kernel.Error{Module: "block", Message: "sector range out of bounds"}
)

type registeredDevice struct {
	name string
	dev  Device
}

// MaxDevices is the fixed registry capacity.
const MaxDevices = 32

var (
	devices   [MaxDevices]registeredDevice
	devCount  int
	classSeen [4]int
)

// Reset clears the registry; used by tests and by re-scans.
func Reset() {
	devCount = 0
	classSeen = [4]int{}
	for i := range devices {
		devices[i] = registeredDevice{}
	}
}

// Register assigns the next canonical name in class's counter sequence to
// dev and adds it to the registry, returning the assigned name or an error
// if the registry is full.
func Register(class Class, dev Device) (string, *kernel.Error) {
	if devCount >= MaxDevices {
		return "", ErrTableFull
	}
	idx := classSeen[class]
	classSeen[class]++
	name := class.prefix() + class.suffix(idx)
	devices[devCount] = registeredDevice{name: name, dev: dev}
	devCount++
	return name, nil
}

// RegisterNamed adds dev to the registry under an explicit name (used by
// the partition scanner, which derives names from the parent device rather
// than a class counter).
func RegisterNamed(name string, dev Device) *kernel.Error {
	if devCount >= MaxDevices {
		return ErrTableFull
	}
	devices[devCount] = registeredDevice{name: name, dev: dev}
	devCount++
	return nil
}

// Lookup returns the device registered under name, or ok=false.
func Lookup(name string) (Device, bool) {
	for i := 0; i < devCount; i++ {
		if devices[i].name == name {
			return devices[i].dev, true
		}
	}
	return nil, false
}

// Count returns the number of registered devices.
func Count() int { return devCount }

// NameAt returns the canonical name of the device at registration-order
// index i. Iterating 0..Count() enumerates every registered device without
// allocating a slice, matching the fixed-array idiom used throughout this
// tree (no Go heap-backed allocator is available this early in boot).
func NameAt(i int) string { return devices[i].name }

// DeviceAt returns the device at registration-order index i.
func DeviceAt(i int) Device { return devices[i].dev }
