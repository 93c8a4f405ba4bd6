package pmm

import "testing"

func withFakeBitmap(t *testing.T, memSizeBytes uint32) {
	t.Helper()
	orig := bitmapBackingFn
	t.Cleanup(func() { bitmapBackingFn = orig })
	bitmapBackingFn = func(length int) []byte { return make([]byte, length) }

	if err := Init(memSizeBytes); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func TestInitReservesUpToKernelEnd(t *testing.T) {
	withFakeBitmap(t, 16*1024*1024) // 16MB

	stats := StatsSnapshot()
	if stats.TotalFrames != 16*1024*1024/PageSize {
		t.Fatalf("unexpected total frames: %d", stats.TotalFrames)
	}

	wantReserved := uint32(reservedKernEnd / PageSize)
	if stats.UsedFrames != wantReserved {
		t.Fatalf("expected %d frames reserved below 4MB, got %d", wantReserved, stats.UsedFrames)
	}

	// First MB and the kernel/bitmap region stay used.
	if IsFree(0) {
		t.Fatal("frame 0 (BIOS/IVT) must never report free")
	}
	if IsFree(wantReserved - 1) {
		t.Fatal("the last frame below reservedKernEnd must still be reserved")
	}
	if !IsFree(wantReserved) {
		t.Fatal("the first frame at/above reservedKernEnd should be free after Init")
	}
}

func TestAllocFreeRoundTrip(t *testing.T) {
	withFakeBitmap(t, 16*1024*1024)

	before := StatsSnapshot()

	addr := AllocPage()
	if addr == 0 {
		t.Fatal("expected a free frame to be available")
	}

	mid := StatsSnapshot()
	if mid.UsedFrames != before.UsedFrames+1 {
		t.Fatalf("expected used frame count to increase by 1, before=%d after=%d", before.UsedFrames, mid.UsedFrames)
	}
	if mid.UsedFrames+mid.FreeFrames != mid.TotalFrames {
		t.Fatal("used+free must equal total after every public operation")
	}

	FreePage(addr)
	after := StatsSnapshot()
	if after.UsedFrames != before.UsedFrames {
		t.Fatalf("expected FreePage to restore the used count, before=%d after=%d", before.UsedFrames, after.UsedFrames)
	}
}

func TestAllocPagesContiguousRun(t *testing.T) {
	withFakeBitmap(t, 16*1024*1024)

	addr := AllocPages(4)
	if addr == 0 {
		t.Fatal("expected a 4-frame run to be available")
	}

	base := uint32(addr / PageSize)
	for i := uint32(0); i < 4; i++ {
		if IsFree(base + i) {
			t.Fatalf("frame %d should have been marked used by AllocPages", base+i)
		}
	}

	FreePages(addr, 4)
	for i := uint32(0); i < 4; i++ {
		if !IsFree(base + i) {
			t.Fatalf("frame %d should have been released by FreePages", base+i)
		}
	}
}

func TestAllocPagesFailsClosedWhenRunUnavailable(t *testing.T) {
	withFakeBitmap(t, 16*1024*1024)

	stats := StatsSnapshot()
	if addr := AllocPages(stats.FreeFrames + 1); addr != 0 {
		t.Fatal("expected AllocPages to fail when no run of the requested length exists")
	}

	after := StatsSnapshot()
	if after != stats {
		t.Fatal("a failed AllocPages must not mutate the bitmap")
	}
}

func TestMarkRegionUsedRoundsOutward(t *testing.T) {
	withFakeBitmap(t, 16*1024*1024)

	// A 1-byte region starting mid-frame must still reserve the whole frame.
	base := uintptr(reservedKernEnd + PageSize + 10)
	MarkRegionUsed(base, 1)

	frame := uint32(base / PageSize)
	if IsFree(frame) {
		t.Fatal("MarkRegionUsed must round outward to cover the whole touched frame")
	}
}

func TestMarkRegionFreeRoundsInward(t *testing.T) {
	withFakeBitmap(t, 16*1024*1024)

	start := reservedKernEnd
	MarkRegionUsed(uintptr(start), 3*PageSize)
	// Ask to free a range that only partially covers the last frame.
	MarkRegionFree(uintptr(start), 2*PageSize+1)

	if !IsFree(uint32(start)/PageSize) || !IsFree(uint32(start)/PageSize+1) {
		t.Fatal("fully covered frames should have been freed")
	}
	if IsFree(uint32(start)/PageSize + 2) {
		t.Fatal("a partially covered frame must not be freed")
	}
}

func TestOutOfRangeFrameIsNeverFree(t *testing.T) {
	withFakeBitmap(t, 16*1024*1024)

	stats := StatsSnapshot()
	if IsFree(stats.TotalFrames + 1000) {
		t.Fatal("an out-of-range frame query must report used, never free")
	}
}
