// Package pit drives the 8253/8254 Programmable Interval Timer at 1 kHz,
// the canonical tick source resolved by spec.md §9's Open Question (PIT
// first; kernel/driver/rtc is only a watchdog fallback). The original
// kernel's pit.cpp is itself an RTC-backed uptime shim rather than a real
// 8253 programmer, so the register sequence here is grounded on the PIC
// remap/IRQ wiring idiom in kernel/idt instead, applied to channel 0 of the
// timer chip at the standard frequency-divisor formula.
package pit

import (
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/idt"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/input"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/sched"
)

const (
	channel0Data = 0x40
	commandPort  = 0x43

	baseFrequency = 1193182 // Hz, the PIT's fixed input clock
	TargetHz      = 1000

	// modeSquareWave selects channel 0, lobyte/hibyte access, mode 3.
	modeSquareWave = 0x36

	// IRQ0 is wired to vector 32 by kernel/idt's PIC remap.
	IRQVector = 32
)

var (
	outbFn = cpu.Outb
	ticks  uint64
)

// Init programs channel 0 for a ~1 kHz square wave and registers the IRQ0
// handler that drives both the scheduler tick and the Timer event stream.
func Init() {
	divisor := uint16(baseFrequency / TargetHz)

	outbFn(commandPort, modeSquareWave)
	outbFn(channel0Data, uint8(divisor&0xFF))
	outbFn(channel0Data, uint8((divisor>>8)&0xFF))

	ticks = 0
	idt.Register(IRQVector, handleTick)
}

func handleTick(*idt.Frame) {
	ticks++
	sched.Tick()
	input.Push(input.Event{Kind: input.Timer, Ticks: ticks})
}

// Ticks returns the number of timer interrupts serviced since Init.
func Ticks() uint64 {
	return ticks
}
