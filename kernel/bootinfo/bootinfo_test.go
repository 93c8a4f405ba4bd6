package bootinfo

import (
	"encoding/binary"
	"testing"
)

// withFakeMem overrides rawBytesFn with an in-memory buffer addressed from 0,
// mirroring kernel/mm/pmm's withFakeBitmap/bitmapBackingFn seam so the two
// fixed physical offsets this package reads never touch real memory in
// tests.
func withFakeMem(t *testing.T, buf []byte) {
	t.Helper()
	orig := rawBytesFn
	t.Cleanup(func() { rawBytesFn = orig })
	rawBytesFn = func(addr uintptr, length int) []byte {
		end := int(addr) + length
		if end > len(buf) {
			t.Fatalf("read past fake buffer: addr=%#x length=%d bufLen=%d", addr, length, len(buf))
		}
		return buf[addr:end]
	}
}

func TestMemSizeBytes(t *testing.T) {
	buf := make([]byte, vesaAddr+vesaBlockSize)
	binary.LittleEndian.PutUint32(buf[memSizeAddr:], 64*1024*1024)
	withFakeMem(t, buf)

	if got := MemSizeBytes(); got != 64*1024*1024 {
		t.Fatalf("MemSizeBytes() = %d, want %d", got, 64*1024*1024)
	}
}

func TestVesaEnabled(t *testing.T) {
	buf := make([]byte, vesaAddr+vesaBlockSize)
	raw := buf[vesaAddr:]
	binary.LittleEndian.PutUint16(raw[0:2], 1024)
	binary.LittleEndian.PutUint16(raw[2:4], 768)
	raw[4] = 32
	binary.LittleEndian.PutUint16(raw[6:8], 4096)
	binary.LittleEndian.PutUint32(raw[8:12], 0xFD000000)
	raw[12] = vesaEnabled
	withFakeMem(t, buf)

	v, ok := Vesa()
	if !ok {
		t.Fatal("Vesa() ok = false, want true")
	}
	if v.Width != 1024 || v.Height != 768 || v.Bpp != 32 || v.Pitch != 4096 || v.FramebufferPhys != 0xFD000000 {
		t.Fatalf("unexpected VesaInfo: %+v", v)
	}
}

func TestVesaDisabled(t *testing.T) {
	buf := make([]byte, vesaAddr+vesaBlockSize)
	withFakeMem(t, buf)

	v, ok := Vesa()
	if ok {
		t.Fatalf("Vesa() ok = true, want false (enabled byte unset): %+v", v)
	}
}
