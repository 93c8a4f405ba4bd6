// Package input implements the fixed-size event queue named in spec.md
// §4.8: a single-producer single-consumer circular buffer fed by the
// keyboard, mouse and timer interrupt handlers, drained by the main loop.
// Event's tagged-variant shape is carried over from the original's separate
// KeyEvent/MouseState structs (original_source/kernel/drivers/input/{keyboard,mouse}.cpp),
// unioned per the REDESIGN FLAGS note in spec.md §9.
package input

import "github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"

// Kind discriminates which fields of an Event are meaningful.
type Kind uint8

const (
	None Kind = iota
	KeyPress
	KeyRelease
	MouseMove
	MouseButtonDown
	MouseButtonUp
	MouseScroll
	Timer
	Quit
)

// MouseButton identifies which button a MouseButtonDown/Up event names.
type MouseButton uint8

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
)

// Event is a tagged variant over every producer this package serves: only
// the fields relevant to Kind are meaningful, mirroring the union spec.md
// §9 asks for in place of the original's per-device event structs.
type Event struct {
	Kind   Kind
	Key    byte // ASCII, valid for KeyPress/KeyRelease
	Button MouseButton
	X, Y   int32 // absolute position, valid for MouseMove
	Scroll int8  // valid for MouseScroll
	Ticks  uint64
}

// QueueSize bounds the circular buffer. One producer ISR writes each event
// kind, so a modest depth is enough to absorb bursts between main-loop
// polls.
const QueueSize = 64

var (
	buf        [QueueSize]Event
	head, tail int
	count      int

	haltFn = cpu.Halt
)

// Push enqueues ev, returning false if the queue is full. Called only from
// interrupt context, so it never blocks.
func Push(ev Event) bool {
	if count == QueueSize {
		return false
	}
	buf[tail] = ev
	tail = (tail + 1) % QueueSize
	count++
	return true
}

// Poll removes and returns the oldest queued event. ok is false if the
// queue is empty.
func Poll() (Event, bool) {
	if count == 0 {
		return Event{}, false
	}
	ev := buf[head]
	head = (head + 1) % QueueSize
	count--
	return ev, true
}

// Wait blocks (halting the CPU between interrupts) until an event is
// available, then returns it. Cheap because the queue is refilled only by
// interrupt handlers, which wake the CPU out of HLT.
func Wait() Event {
	for {
		if ev, ok := Poll(); ok {
			return ev
		}
		haltFn()
	}
}

// Reset empties the queue; used by tests.
func Reset() {
	head, tail, count = 0, 0, 0
}
