package kernel

import (
	"unsafe"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/kfmt/early"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt
	// disableIntFn is mocked by tests for the same reason.
	disableIntFn = cpu.DisableInterrupts
	// readEFlagsFn is mocked by tests.
	readEFlagsFn = cpu.ReadEFlags

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}

	// panicking is the re-entrancy guard described in the panic design
	// notes: the panic handler itself may fault (e.g. walking a corrupt
	// stack), and a second entry must fall straight through to halt
	// instead of recursing into Printf again.
	panicking bool
)

// Panic outputs the supplied error (if not nil) to the console along with a
// register dump and a best-effort stack trace, then halts the CPU with
// interrupts disabled. Calls to Panic never return. Panic also works as a
// redirection target for calls to panic() (resolved via runtime.gopanic).
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	disableIntFn()

	if panicking {
		cpuHaltFn()
		return
	}
	panicking = true

	var err *Error
	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("eflags: %x\n", readEFlagsFn())
	printStackTrace()
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// currentEBP returns the caller's frame-pointer register. It is implemented
// in panic_386.s since Go has no syntax for reading EBP directly.
func currentEBP() uintptr

// maxStackFrames bounds the walk in case the saved base-pointer chain is
// corrupt and would otherwise loop or run off into unmapped memory.
const maxStackFrames = 32

// minFrameAddr is the lowest value the walk accepts as a saved base pointer;
// anything inside the first page ends the trace.
const minFrameAddr = 0x1000

// printStackTrace walks the chain of saved base pointers starting at the
// caller of Panic, printing each saved return address. This is a best-effort
// trace: the walk stops at a base pointer below minFrameAddr or not 4-byte
// aligned, at a zero return address, at a saved base pointer that does not
// move up the stack, or after maxStackFrames frames. Any other EBP value is
// dereferenced as found.
func printStackTrace() {
	ebp := currentEBP()
	early.Printf("stack trace:\n")
	for i := 0; i < maxStackFrames && ebp >= minFrameAddr && ebp%4 == 0; i++ {
		savedEBP := *(*uintptr)(unsafe.Pointer(ebp))
		retAddr := *(*uintptr)(unsafe.Pointer(ebp + unsafe.Sizeof(ebp)))
		if retAddr == 0 {
			break
		}
		early.Printf("  #%d %x\n", i, retAddr)
		if savedEBP <= ebp {
			break
		}
		ebp = savedEBP
	}
}
