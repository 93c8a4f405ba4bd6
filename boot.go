package main

import "github.com/Bolt2841/BOLT-OS-sub000/kernel/kmain"

// main is the only Go symbol visible (exported) from the boot trampoline
// handed off by the BIOS bootloader once it has entered 32-bit protected
// mode (spec.md §6). It exists only to call into kmain.Kmain so the Go
// compiler has a concrete, non-eliminable call site for the kernel's real
// entry point; main itself does no setup.
//
// main is not expected to return. If it does, the caller halts the CPU.
func main() {
	kmain.Kmain()
}
