// Package pci implements a minimal PCI configuration-space enumerator,
// grounded on original_source/kernel/drivers/bus/pci.cpp's config-address
// mechanism and class/subclass naming tables. It lets kmain choose between
// kernel/block's "hd" and "sd" device-class counters (spec.md §4.6's naming
// table names both): when a SATA mass storage controller is present, the
// drives probed through kernel/driver/ata are registered as "sda", "sdb", …
// instead of "hda", "hdb", ….
package pci

import "github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"

const (
	configAddress = 0xCF8
	configData    = 0xCFC

	MaxDevices = 32
)

// Device is one discovered PCI function's identity and BARs.
type Device struct {
	Bus, Slot, Func uint8
	VendorID        uint16
	DeviceID        uint16
	ClassCode       uint8
	Subclass        uint8
	ProgIF          uint8
	HeaderType      uint8
	BAR             [6]uint32
}

var (
	outlFn = cpu.Outl
	inlFn  = cpu.Inl

	devices [MaxDevices]Device
	count   int
)

func configRead(bus, slot, fn uint8, offset uint8) uint32 {
	addr := uint32(1)<<31 |
		uint32(bus)<<16 |
		uint32(slot)<<11 |
		uint32(fn)<<8 |
		uint32(offset&0xFC)
	outlFn(configAddress, addr)
	return inlFn(configData)
}

func vendorID(bus, slot, fn uint8) uint16 {
	return uint16(configRead(bus, slot, fn, 0x00))
}

func headerType(bus, slot, fn uint8) uint8 {
	return uint8(configRead(bus, slot, fn, 0x0C) >> 16)
}

func addDevice(bus, slot, fn uint8) {
	if count >= MaxDevices {
		return
	}
	reg0 := configRead(bus, slot, fn, 0x00)
	reg2 := configRead(bus, slot, fn, 0x08)
	reg3 := configRead(bus, slot, fn, 0x0C)

	d := Device{
		Bus: bus, Slot: slot, Func: fn,
		VendorID:   uint16(reg0),
		DeviceID:   uint16(reg0 >> 16),
		ProgIF:     uint8(reg2 >> 8),
		Subclass:   uint8(reg2 >> 16),
		ClassCode:  uint8(reg2 >> 24),
		HeaderType: uint8(reg3 >> 16),
	}
	if d.HeaderType&0x7F == 0x00 {
		for i := 0; i < 6; i++ {
			d.BAR[i] = configRead(bus, slot, fn, 0x10+uint8(i*4))
		}
	}
	devices[count] = d
	count++
}

func checkDevice(bus, slot uint8) {
	if vendorID(bus, slot, 0) == 0xFFFF {
		return
	}
	addDevice(bus, slot, 0)

	if headerType(bus, slot, 0)&0x80 != 0 {
		for fn := uint8(1); fn < 8; fn++ {
			if vendorID(bus, slot, fn) != 0xFFFF {
				addDevice(bus, slot, fn)
			}
		}
	}
}

// Enumerate scans every bus/slot combination and rebuilds the device list.
func Enumerate() {
	count = 0
	for bus := 0; bus < 256; bus++ {
		for slot := uint8(0); slot < 32; slot++ {
			checkDevice(uint8(bus), slot)
		}
	}
}

// Count returns the number of devices found by the last Enumerate call.
func Count() int {
	return count
}

// DeviceAt returns the device discovered at enumeration index i.
func DeviceAt(i int) Device {
	return devices[i]
}

// classMassStorage, subclassIDE, subclassSATA per the PCI class code table
// (original_source/kernel/drivers/bus/pci.cpp's pci_subclass_name).
const (
	classMassStorage = 0x01
	subclassIDE      = 0x01
	subclassSATA     = 0x06
)

// FindStorageController returns the first enumerated SATA mass-storage
// controller; kmain uses its presence to register the probed ATA drives
// under the "sd" device-class counter instead of "hd". IDE controllers are
// not reported, so legacy ATA drives keep their "hd" names.
func FindStorageController() (Device, bool) {
	for i := 0; i < count; i++ {
		d := devices[i]
		if d.ClassCode == classMassStorage && d.Subclass == subclassSATA {
			return d, true
		}
	}
	return Device{}, false
}
