// Package idt builds the 256-entry Interrupt Descriptor Table, remaps the
// 8259 PICs so hardware IRQs land outside the CPU exception range, and
// dispatches every vector through a Go-registered handler table. The gate
// layout and PIC remap sequence mirror the C++ reference kernel's idt.cpp
// almost verbatim; only the registration mechanism (a Go func table instead
// of C function pointers) and the entry point (one shared assembly trampoline
// instead of 48 near-duplicate ISR bodies) differ.
package idt

import (
	"unsafe"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/kfmt/early"
)

const entryCount = 256

// Exception vectors with a CPU-pushed error code; all others get a
// zero-padded one by the shared assembly trampoline so every handler sees a
// uniform Frame layout.
var vectorsWithErrorCode = [...]bool{
	8: true, 10: true, 11: true, 12: true, 13: true, 14: true, 17: true, 21: true, 29: true, 30: true,
}

// PIC ports and remap offsets.
const (
	pic1Command = 0x20
	pic1Data    = 0x21
	pic2Command = 0xA0
	pic2Data    = 0xA1

	pic1Offset = 0x20 // IRQ0-7  -> vectors 32-39
	pic2Offset = 0x28 // IRQ8-15 -> vectors 40-47
)

const (
	gateType32Interrupt = 0x8E // present, ring 0, 32-bit interrupt gate
)

type descriptor struct {
	offsetLow  uint16
	selector   uint16
	zero       uint8
	typeAttr   uint8
	offsetHigh uint16
}

type pointer struct {
	limit uint16
	base  uint32
}

var (
	table    [entryCount]descriptor
	tablePtr pointer

	// handlers holds the Go-level callback registered for each vector.
	// A nil entry falls back to defaultHandler.
	handlers [entryCount]Handler

	// outbFn is mocked by tests.
	outbFn = cpu.Outb

	// irqWarned throttles the unregistered-IRQ diagnostic to its first
	// occurrence per vector, so a device that never gets a handler
	// registered doesn't flood the console on every tick.
	irqWarned [entryCount]bool
)

// Frame is the register/vector snapshot passed to every registered handler,
// reconstructed by the shared assembly trampoline from the stack layout left
// behind by PUSHAL plus the CPU-pushed (optionally synthesized) error code
// and the CPU-pushed EIP/CS/EFLAGS triple.
type Frame struct {
	EDI, ESI, EBP, ESPDummy uint32
	EBX, EDX, ECX, EAX      uint32
	IntNo, ErrCode          uint32
	EIP, CS, EFlags         uint32
}

// Handler processes one interrupt vector's Frame.
type Handler func(*Frame)

// Register installs fn as the handler for vector. Passing a nil fn restores
// the default unhandled-exception diagnostic.
func Register(vector uint8, fn Handler) {
	handlers[vector] = fn
}

func setGate(num int, handlerAddr uintptr, selector uint16, flags uint8) {
	table[num] = descriptor{
		offsetLow:  uint16(handlerAddr & 0xFFFF),
		offsetHigh: uint16((handlerAddr >> 16) & 0xFFFF),
		selector:   selector,
		zero:       0,
		typeAttr:   flags,
	}
}

// Init fills in all 256 gates, remaps the PICs, and loads the IDT register.
// stubTable must contain the 256 linear addresses of the per-vector assembly
// trampolines (isrStubs in idt_386.s), in vector order.
func Init(stubTable [entryCount]uintptr, kernelCodeSelector uint16) {
	for i := 0; i < entryCount; i++ {
		setGate(i, stubTable[i], kernelCodeSelector, gateType32Interrupt)
	}

	remapPIC()

	tablePtr.limit = uint16(entryCount*8 - 1)
	tablePtr.base = uint32(uintptr(unsafe.Pointer(&table)))

	cpu.LoadIDT(uintptr(unsafe.Pointer(&tablePtr)))
}

func remapPIC() {
	outbFn(pic1Command, 0x11)
	outbFn(pic2Command, 0x11)

	outbFn(pic1Data, pic1Offset)
	outbFn(pic2Data, pic2Offset)

	outbFn(pic1Data, 0x04) // tell master PIC about the slave on IRQ2
	outbFn(pic2Data, 0x02) // tell slave PIC its cascade identity

	outbFn(pic1Data, 0x01) // 8086 mode
	outbFn(pic2Data, 0x01)

	outbFn(pic1Data, 0x00) // unmask all IRQs
	outbFn(pic2Data, 0x00)
}

// Dispatch is invoked by the shared assembly trampoline for every vector. It
// is exported via go:linkname-free means by being a plain package function
// called from asm through the usual Go calling convention shim in idt_386.s.
func Dispatch(f *Frame) {
	if h := handlers[f.IntNo]; h != nil {
		h(f)
	} else {
		defaultHandler(f)
	}

	if f.IntNo >= 40 {
		outbFn(pic2Command, 0x20)
	}
	if f.IntNo >= 32 {
		outbFn(pic1Command, 0x20)
	}
}

func defaultHandler(f *Frame) {
	if f.IntNo >= 32 {
		// Unregistered hardware IRQ: ack and move on, but log it once per
		// vector so a silently-ignored device doesn't go unnoticed (spec.md
		// §4.1/§7: "ignored with diagnostic").
		if !irqWarned[f.IntNo] {
			irqWarned[f.IntNo] = true
			early.Printf("idt: unhandled IRQ %d, ignoring\n", f.IntNo-32)
		}
		return
	}

	early.Printf("\n!!! CPU exception %d (err=%x) at eip=%x !!!\n", f.IntNo, f.ErrCode, f.EIP)
	panicFn(f)
}

// panicFn is overridden by kernel.Panic at wiring time (kmain) to avoid an
// import cycle between idt and the root kernel package.
var panicFn = func(*Frame) {
	cpu.DisableInterrupts()
	cpu.Halt()
}

// SetPanicFunc lets kmain wire the real kernel.Panic as the fallback for
// unhandled CPU exceptions.
func SetPanicFunc(fn func(*Frame)) {
	panicFn = fn
}
