// Package gdt builds the flat Global Descriptor Table the kernel runs under:
// a null descriptor plus kernel/user code and data segments, each spanning
// the full 4GB linear address space so that segmentation never gets in the
// way of the paging-based memory model implemented by kernel/mm/vmm.
package gdt

import (
	"unsafe"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"
)

// Selector indices into the GDT, expressed as the values loaded into a
// segment register (already shifted left by 3 to skip the RPL/TI bits).
const (
	NullSegment       = 0x00
	KernelCodeSegment = 0x08
	KernelDataSegment = 0x10
	UserCodeSegment   = 0x18
	UserDataSegment   = 0x20

	entryCount = 5
)

// Access byte flags, per the Intel SDM segment-descriptor layout.
const (
	accessPresent    = 1 << 7
	accessRing3      = 3 << 5
	accessDescType   = 1 << 4 // 1 = code/data (not a system descriptor)
	accessExecutable = 1 << 3
	accessRW         = 1 << 1 // readable (code) / writable (data)

	// granularity: 4KB page granularity + 32-bit operand size.
	flagsGranularity = 0xC
)

// entry is the on-the-wire layout of a single 8-byte GDT descriptor.
type entry struct {
	limitLow    uint16
	baseLow     uint16
	baseMiddle  uint8
	access      uint8
	granularity uint8
	baseHigh    uint8
}

func makeEntry(base uint32, limit uint32, access uint8) entry {
	return entry{
		limitLow:    uint16(limit & 0xFFFF),
		baseLow:     uint16(base & 0xFFFF),
		baseMiddle:  uint8((base >> 16) & 0xFF),
		access:      access,
		granularity: uint8((limit>>16)&0x0F) | (flagsGranularity << 4),
		baseHigh:    uint8((base >> 24) & 0xFF),
	}
}

type pointer struct {
	limit uint16
	base  uint32
}

var (
	table entries

	tablePtr pointer

	loadGDTFn = cpu.LoadGDT
)

type entries [entryCount]entry

// Init builds the 5-entry flat GDT and loads it via LGDT, reloading every
// segment register to point at the new kernel code/data selectors.
func Init() {
	table[0] = entry{} // null descriptor

	table[1] = makeEntry(0, 0xFFFFF, accessPresent|accessDescType|accessExecutable|accessRW)
	table[2] = makeEntry(0, 0xFFFFF, accessPresent|accessDescType|accessRW)
	table[3] = makeEntry(0, 0xFFFFF, accessPresent|accessRing3|accessDescType|accessExecutable|accessRW)
	table[4] = makeEntry(0, 0xFFFFF, accessPresent|accessRing3|accessDescType|accessRW)

	tablePtr.limit = uint16(entryCount*8 - 1)
	tablePtr.base = uint32(uintptr(unsafe.Pointer(&table)))

	loadGDTFn(uintptr(unsafe.Pointer(&tablePtr)))
}
