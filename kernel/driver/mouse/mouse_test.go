package mouse

import (
	"testing"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel/input"
)

// withFakeBus feeds a fixed sequence of inbFn responses and discards all
// outbFn writes, enough to drive Init's probe sequence (every readData()
// during Init just needs to return some non-blocking byte) and then
// packet bytes for handleIRQ.
func withFakeBus(t *testing.T, afterInit []uint8) func() {
	t.Helper()
	origOut, origIn := outbFn, inbFn
	i := 0
	outbFn = func(uint16, uint8) {}
	inbFn = func(port uint16) uint8 {
		if port == statusPort {
			return statusOutputFull
		}
		if i >= len(afterInit) {
			return 0
		}
		v := afterInit[i]
		i++
		return v
	}
	return func() { outbFn, inbFn = origOut, origIn }
}

func TestInitDetectsWheel(t *testing.T) {
	// Init reads: status byte, ack(0xF6), 6x sample-rate acks (each command
	// and each rate value is acked), ack(0xF2), device id.
	defer withFakeBus(t, []uint8{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 3})()
	Init()
	if !hasWheel || packetSize != 4 {
		t.Fatalf("hasWheel=%v packetSize=%d, want wheel detected with size 4", hasWheel, packetSize)
	}
}

func TestHandleIRQEmitsMoveAndButtons(t *testing.T) {
	defer withFakeBus(t, []uint8{0x00, 0x00, 0x00, 0x00, 0x00, 0})() // plain mouse, no wheel
	Init()
	SetBounds(320, 200)
	input.Reset()
	leftDown, rightDown, middleDown = false, false, false

	// flags=0x09 (bit3 set + left button), dx=5, dy=0
	defer withFakeBus(t, []uint8{0x09, 5, 0})()
	handleIRQ(nil)
	handleIRQ(nil)
	handleIRQ(nil)

	move, ok := input.Poll()
	if !ok || move.Kind != input.MouseMove {
		t.Fatalf("expected MouseMove first, got %+v ok=%v", move, ok)
	}
	btn, ok := input.Poll()
	if !ok || btn.Kind != input.MouseButtonDown || btn.Button != input.ButtonLeft {
		t.Fatalf("expected MouseButtonDown(Left), got %+v ok=%v", btn, ok)
	}
}
