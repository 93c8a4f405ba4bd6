// Package kmain implements the kernel's boot sequence: the single ordered
// call chain that brings up segmentation, interrupts, physical/virtual
// memory, the heap, the scheduler, block devices and the filesystem layer,
// in the dependency order spec.md §2 lays out (leaves first). It is the
// glue original_source spreads across its own main.cpp/kernel_main.cpp;
// here it is one Go function per the teacher's single-Kmain-entry-point
// idiom (kernel/kmain/kmain.go in the copied tree).
package kmain

import (
	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/block"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/block/partition"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/bootinfo"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/driver/ata"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/driver/console"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/driver/keyboard"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/driver/mouse"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/driver/pci"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/driver/pit"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/driver/serial"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/driver/vga"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/fs/fat32"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/fs/ramfs"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/gdt"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/idt"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/kfmt/early"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/mm/heap"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/mm/pmm"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/mm/vmm"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/sched"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/vfs"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// heapBase/heapSize carve a 4MB administrative heap out of the identity-
// mapped low region, right above the 4MB the PMM always reserves for the
// BIOS/IVT and the kernel image + its own bitmap (spec.md §4.2).
const (
	heapBase = 0x400000
	heapSize = 4 * 1024 * 1024
)

var term console.Term

// Kmain is the kernel's single entry point, invoked by the BIOS-to-
// protected-mode trampoline once the CPU is in 32-bit protected mode with
// paging off and interrupts disabled (spec.md §6's boot handoff contract).
// It is not expected to return; if it does, the caller is expected to halt.
//
//go:noinline
func Kmain() {
	bringUpConsole()

	gdt.Init()
	idt.Init(idt.StubAddrs(), gdt.KernelCodeSegment)
	idt.SetPanicFunc(func(f *idt.Frame) { kernel.Panic(&kernel.Error{Module: "idt", Message: "unhandled CPU exception"}) })

	memSize := bootinfo.MemSizeBytes()
	if err := pmm.Init(memSize); err != nil {
		kernel.Panic(err)
	}
	pmm.MarkRegionUsed(heapBase, heapSize)

	if err := vmm.Init(vmm.DefaultPDAddr, vmm.DefaultPTAddr, pmm.AllocPage); err != nil {
		kernel.Panic(err)
	}
	vmm.OnPageFault = func(info vmm.FaultInfo) {
		early.Printf("\n!!! page fault at %x (present=%v write=%v user=%v) !!!\n",
			info.Addr, info.Present, info.Write, info.User)
		kernel.Panic(&kernel.Error{Module: "vmm", Message: "unhandled page fault"})
	}
	vmm.Enable()

	heap.Init(heapBase, heapSize)

	sched.Init(
		func(size uintptr) uintptr { return heap.Alloc(size) },
		func(base uintptr) { heap.Free(base) },
		idleLoop,
	)

	pit.Init()
	keyboard.Init()
	if w, h := vgaConsole.Dimensions(); w > 0 || h > 0 {
		mouse.SetBounds(int32(w), int32(h))
	}
	mouse.Init()

	discoverBlockDevices()
	mountRootFilesystem()

	cpu.EnableInterrupts()

	// This is, from here on, literally the pid-0 idle task: halt until the
	// next interrupt, forever. The timer tick preempts it into whatever
	// else is Ready; round-robin eventually switches back into this exact
	// loop. idleLoop never returns, so errKmainReturned is unreachable in
	// practice — it exists only so a hypothetical future break out of the
	// loop still halts cleanly instead of falling off the function.
	idleLoop()
	kernel.Panic(errKmainReturned)
}

var vgaConsole vga.Vga

// bringUpConsole attaches early.Printf to the serial port immediately (so
// the earliest possible diagnostics survive even if the VGA bring-up itself
// faults), then switches it over to the VGA text console once that is
// initialized, mirroring the teacher's serial-before-video logging order.
func bringUpConsole() {
	var com1 serial.Port
	com1.Init(serial.COM1, 115200)
	early.SetOutput(&com1)

	vgaConsole.Init()
	term.AttachTo(&vgaConsole)
	term.Clear()
	early.SetOutput(&term)
}

func idleLoop() {
	for {
		cpu.Halt()
	}
}

// discoverBlockDevices probes the legacy ATA PIO channels for attached
// drives, registers each under the block registry's canonical naming
// (spec.md §4.6), then scans every whole-device disk for a partition table
// and registers each discovered partition as its own named child device.
// A PCI SATA controller (if any) only changes which device-class
// counter ("sd" vs "hd") new drives are registered under; the PIO command
// sequence is identical either way since this kernel never programs AHCI.
func discoverBlockDevices() {
	pci.Enumerate()
	class := block.ClassATA
	if _, ok := pci.FindStorageController(); ok {
		class = block.ClassSATA
	}

	type probe struct{ channel, slave uint8 }
	probes := [4]probe{{0, 0}, {0, 1}, {1, 0}, {1, 1}}

	var whole [4]block.Device
	wholeCount := 0

	for _, p := range probes {
		drive, err := ata.Identify(p.channel, p.slave)
		if err != nil {
			continue
		}
		if _, regErr := block.Register(class, drive); regErr != nil {
			early.Printf("block: could not register drive: %s\n", regErr.Message)
			continue
		}
		whole[wholeCount] = drive
		wholeCount++
	}

	var entries [16]partition.Entry
	for i := 0; i < wholeCount; i++ {
		dev := whole[i]
		n, err := partition.Scan(dev, entries[:])
		if err != nil {
			continue // no partition table: the whole device is itself the usable volume
		}
		parentName := block.NameAt(deviceRegistryIndex(dev))
		for j := 0; j < n; j++ {
			e := entries[j]
			// Primary MBR slots and GPT entries report a 0-based Index;
			// logical MBR partitions are already numbered from 5.
			num := e.Index
			if e.IsGPT || num < 4 {
				num++
			}
			childName := partitionName(parentName, num)
			pdev := partition.NewDevice(childName, dev, e.StartLBA, e.SectorCount)
			if regErr := block.RegisterNamed(childName, pdev); regErr != nil {
				early.Printf("block: could not register partition %s: %s\n", childName, regErr.Message)
			}
		}
	}
}

func deviceRegistryIndex(dev block.Device) int {
	for i := 0; i < block.Count(); i++ {
		if block.DeviceAt(i) == dev {
			return i
		}
	}
	return -1
}

const maxPartitionNameLen = 24

// partitionName builds "<parent><index>" (e.g. "hda1") in a fixed buffer,
// the same no-heap string-building idiom kernel/block.itoa and
// kernel/fs/fat32.itoaInto use elsewhere in this tree.
func partitionName(parent string, index int) string {
	suffix := index
	if suffix <= 0 {
		suffix = 1
	}
	var digits [4]byte
	n := 0
	for v := suffix; v > 0; v /= 10 {
		digits[n] = byte('0' + v%10)
		n++
	}

	var buf [maxPartitionNameLen]byte
	k := copy(buf[:], parent)
	for i := n - 1; i >= 0 && k < maxPartitionNameLen; i-- {
		buf[k] = digits[i]
		k++
	}
	return string(buf[:k])
}

// mountRootFilesystem implements spec.md §4.7's VFS auto-detect sweep: for
// every registered partition whose boot sector looks like FAT32, try
// mounting the real driver there; the first success becomes the root.
// Finding nothing usable falls back to RAMFS, mounted in degraded mode.
func mountRootFilesystem() {
	for i := 0; i < block.Count(); i++ {
		dev := block.DeviceAt(i)
		if !fat32.Probe(dev) {
			continue
		}
		fs := fat32.New()
		if err := fs.Mount(dev); err != nil {
			continue
		}
		if err := vfs.Mount("/", fs, dev); err != nil {
			kernel.Panic(err)
		}
		return
	}

	if err := vfs.Mount("/", ramfs.New(), nil); err != nil {
		kernel.Panic(err)
	}
}
