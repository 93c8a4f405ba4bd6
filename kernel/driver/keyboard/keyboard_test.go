package keyboard

import (
	"testing"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel/input"
)

func withFakeBus(t *testing.T, scancodes []uint8) func() {
	t.Helper()
	origOut, origIn := outbFn, inbFn
	i := 0
	outbFn = func(uint16, uint8) {}
	inbFn = func(port uint16) uint8 {
		if port == statusPort {
			return 0
		}
		if i >= len(scancodes) {
			return 0
		}
		v := scancodes[i]
		i++
		return v
	}
	return func() { outbFn, inbFn = origOut, origIn }
}

func TestPlainKeyPress(t *testing.T) {
	defer withFakeBus(t, []uint8{0x1E})() // 'a' make code
	input.Reset()
	Init()

	handleIRQ(nil)
	ev, ok := input.Poll()
	if !ok || ev.Kind != input.KeyPress || ev.Key != 'a' {
		t.Fatalf("handleIRQ() produced %+v, %v; want KeyPress 'a'", ev, ok)
	}
}

func TestShiftedKeyPress(t *testing.T) {
	defer withFakeBus(t, []uint8{scancodeLeftShift, 0x1E})()
	input.Reset()
	Init()

	handleIRQ(nil) // shift down, no event
	if _, ok := input.Poll(); ok {
		t.Fatal("shift press should not itself enqueue an event")
	}
	handleIRQ(nil) // 'a' -> 'A' while shift held
	ev, ok := input.Poll()
	if !ok || ev.Key != 'A' {
		t.Fatalf("shifted key = %+v, %v; want 'A'", ev, ok)
	}
}

func TestKeyRelease(t *testing.T) {
	defer withFakeBus(t, []uint8{0x1E | releaseBit})()
	input.Reset()
	Init()

	handleIRQ(nil)
	ev, ok := input.Poll()
	if !ok || ev.Kind != input.KeyRelease || ev.Key != 'a' {
		t.Fatalf("release = %+v, %v; want KeyRelease 'a'", ev, ok)
	}
}
