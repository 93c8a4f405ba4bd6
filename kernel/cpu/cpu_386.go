// Package cpu exposes the IA-32 instructions the rest of the kernel needs
// but Go has no syntax for: port I/O, interrupt masking, control-register
// access and TLB invalidation. Each declaration below is backed by a
// hand-written stub in cpu_386.s; the split mirrors the teacher's
// declare-in-Go/implement-in-assembly layout for its amd64 equivalents.
package cpu

// EnableInterrupts executes STI, unmasking maskable interrupts.
func EnableInterrupts()

// DisableInterrupts executes CLI, masking maskable interrupts.
func DisableInterrupts()

// Halt executes HLT, stopping instruction execution until the next
// interrupt.
func Halt()

// Inb reads a single byte from the given I/O port.
func Inb(port uint16) uint8

// Outb writes a single byte to the given I/O port.
func Outb(port uint16, val uint8)

// Inw reads a 16-bit word from the given I/O port.
func Inw(port uint16) uint16

// Outw writes a 16-bit word to the given I/O port.
func Outw(port uint16, val uint16)

// Inl reads a 32-bit dword from the given I/O port.
func Inl(port uint16) uint32

// Outl writes a 32-bit dword to the given I/O port.
func Outl(port uint16, val uint32)

// Invlpg invalidates the TLB entry that maps virtAddr.
func Invlpg(virtAddr uintptr)

// ReadCR2 returns the faulting linear address recorded by the last page
// fault.
func ReadCR2() uintptr

// ReadCR3 returns the physical address of the active page directory.
func ReadCR3() uintptr

// WriteCR3 loads a new page directory physical address, flushing the
// entire TLB (except global pages).
func WriteCR3(pdPhysAddr uintptr)

// EnablePaging sets CR0.PG, turning on paging using whatever page
// directory is currently loaded in CR3.
func EnablePaging()

// ReadEFlags returns the current EFLAGS register.
func ReadEFlags() uint32

// LoadIDT loads the IDT register (LIDT) from a 6-byte pseudo-descriptor
// (2-byte limit, 4-byte linear base).
func LoadIDT(idtPtr uintptr)

// LoadGDT loads the GDT register (LGDT) from a 6-byte pseudo-descriptor
// and reloads the segment registers to the kernel code/data selectors.
func LoadGDT(gdtPtr uintptr)
