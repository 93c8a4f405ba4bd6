// Package pmm implements the physical page-frame allocator: a single bitmap
// over all 4KB frames described by the boot memory size, with linear-scan
// first-fit allocation. The reservation order (first 1MB, then the
// kernel+bitmap region up to 4MB) and the bitmap-at-a-fixed-address layout
// follow original_source/kernel/core/memory/pmm.cpp; the Go shape (explicit
// *kernel.Error returns, a Frame newtype distinct from a raw address) follows
// the teacher's kernel/mem/pmm packages.
package pmm

import (
	"math/bits"
	"unsafe"

	"github.com/Bolt2841/BOLT-OS-sub000/kernel"
)

// PageSize is the fixed frame size this allocator hands out.
const PageSize = 4096

// bitmapAddr is the fixed low-memory address original_source reserves for
// the allocator's own bitmap.
const bitmapAddr = 0x9000

const (
	reservedLowMem  = 1 * 1024 * 1024 // BIOS/IVT, always reserved
	reservedKernEnd = 4 * 1024 * 1024 // kernel image + bitmap, always reserved
)

// Frame is a physical frame number (a physical address shifted right by 12).
type Frame uint32

// Addr returns the physical address of the frame.
func (f Frame) Addr() uintptr { return uintptr(f) << 12 }

var (
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of physical memory"}

	bitmap      []byte
	totalFrames uint32
	usedFrames  uint32

	// bitmapBackingFn is mocked by tests, which cannot dereference the
	// fixed physical address bitmapAddr the way the real kernel can.
	bitmapBackingFn = func(length int) []byte { return rawBytes(bitmapAddr, length) }
)

// Init derives total_pages from memSizeBytes, lays the bitmap out at
// bitmapAddr, marks every frame used, then frees every frame at or above
// reservedKernEnd. The first 1MB and the kernel+bitmap region remain
// permanently reserved, matching the original kernel's boot-time layout.
func Init(memSizeBytes uint32) *kernel.Error {
	totalFrames = memSizeBytes / PageSize
	if totalFrames == 0 {
		return &kernel.Error{Module: "pmm", Message: "reported memory size is smaller than one page"}
	}

	bitmapBytes := (totalFrames + 7) / 8
	bitmap = bitmapBackingFn(int(bitmapBytes))

	for i := range bitmap {
		bitmap[i] = 0xFF
	}
	usedFrames = totalFrames

	if reservedKernEnd/PageSize < totalFrames {
		markRange(reservedKernEnd/PageSize, totalFrames, true)
	}

	return nil
}

// rawBytes maps a fixed physical address as a Go byte slice, the same
// reflect.SliceHeader/unsafe.Pointer trick the teacher uses to expose the
// VGA text buffer.
func rawBytes(addr uintptr, length int) []byte {
	type sliceHeader struct {
		Data uintptr
		Len  int
		Cap  int
	}
	var b []byte
	hdr := (*sliceHeader)(unsafe.Pointer(&b))
	hdr.Data = addr
	hdr.Len = length
	hdr.Cap = length
	return b
}

func bitSet(n uint32) bool   { return bitmap[n/8]&(1<<(n%8)) != 0 }
func setBit(n uint32)        { bitmap[n/8] |= 1 << (n % 8) }
func clearBit(n uint32)      { bitmap[n/8] &^= 1 << (n % 8) }

// markRange sets [from, to) to used (free=false) or free (free=true),
// updating usedFrames to keep the used+free==total invariant.
func markRange(from, to uint32, free bool) {
	if to > totalFrames {
		to = totalFrames
	}
	for n := from; n < to; n++ {
		wasSet := bitSet(n)
		if free {
			if wasSet {
				clearBit(n)
				usedFrames--
			}
		} else {
			if !wasSet {
				setBit(n)
				usedFrames++
			}
		}
	}
}

// MarkRegionUsed reserves every frame touched by [base, base+length),
// rounding outward to whole frames (matching spec's "page-aligned-outward"
// rule for "used" regions) — used by drivers claiming MMIO windows.
func MarkRegionUsed(base uintptr, length uintptr) {
	start := uint32(base / PageSize)
	end := uint32((base + length + PageSize - 1) / PageSize)
	markRange(start, end, false)
}

// MarkRegionFree releases every frame fully contained in [base, base+length),
// rounding inward to whole frames (never freeing a frame only partially
// covered by the range).
func MarkRegionFree(base uintptr, length uintptr) {
	start := uint32((base + PageSize - 1) / PageSize)
	end := uint32((base + length) / PageSize)
	if end <= start {
		return
	}
	markRange(start, end, true)
}

// AllocPage returns the physical address of a single free frame, or 0 if
// none is available. It never faults; the caller decides whether a zero
// result is fatal.
func AllocPage() uintptr {
	for wordIdx := 0; wordIdx < len(bitmap); wordIdx += 8 {
		end := wordIdx + 8
		if end > len(bitmap) {
			end = len(bitmap)
		}
		for i := wordIdx; i < end; i++ {
			if bitmap[i] == 0xFF {
				continue
			}
			bit := bits.TrailingZeros8(^bitmap[i])
			frame := uint32(i)*8 + uint32(bit)
			if frame >= totalFrames {
				return 0
			}
			setBit(frame)
			usedFrames++
			return Frame(frame).Addr()
		}
	}
	return 0
}

// AllocPages returns the physical address of the first frame in a run of n
// consecutive free frames, or 0 if no such run exists. On success all n
// frames are atomically marked used; on failure the bitmap is unchanged.
func AllocPages(n uint32) uintptr {
	if n == 0 {
		return 0
	}

	var runStart, runLen uint32
	inRun := false
	for frame := uint32(0); frame < totalFrames; frame++ {
		if !bitSet(frame) {
			if !inRun {
				runStart = frame
				inRun = true
			}
			runLen++
			if runLen == n {
				markRange(runStart, runStart+n, false)
				return Frame(runStart).Addr()
			}
		} else {
			inRun = false
			runLen = 0
		}
	}
	return 0
}

// FreePage releases the single frame at addr. Freeing an already-free frame
// is a no-op.
func FreePage(addr uintptr) {
	markRange(uint32(addr/PageSize), uint32(addr/PageSize)+1, true)
}

// FreePages releases the n frames starting at addr.
func FreePages(addr uintptr, n uint32) {
	start := uint32(addr / PageSize)
	markRange(start, start+n, true)
}

// Stats reports allocator totals.
type Stats struct {
	TotalFrames, UsedFrames, FreeFrames uint32
	TotalBytes, UsedBytes, FreeBytes    uint64
}

// StatsSnapshot returns the current total/used/free frame and byte counts.
func StatsSnapshot() Stats {
	free := totalFrames - usedFrames
	return Stats{
		TotalFrames: totalFrames,
		UsedFrames:  usedFrames,
		FreeFrames:  free,
		TotalBytes:  uint64(totalFrames) * PageSize,
		UsedBytes:   uint64(usedFrames) * PageSize,
		FreeBytes:   uint64(free) * PageSize,
	}
}

// IsFree reports whether frame n is currently free. Out-of-range queries
// always report used (false), never free, per the invariant in spec.md §4.2.
func IsFree(n uint32) bool {
	if n >= totalFrames {
		return false
	}
	return !bitSet(n)
}
