// Package heap implements a single intrusive free-list allocator over a
// fixed virtual-address window, for small administrative kernel
// allocations; large page-granular allocations go through pmm/vmm directly.
// The algorithm (8-byte alignment, first-fit with a header+32-byte split
// threshold, forward-only coalescing on free) follows
// original_source/kernel/core/memory/heap.cpp; the Go shape (no operator-new
// equivalent — callers check for a nil pointer instead of catching an
// exception) follows the teacher's explicit-failure-return idiom used
// throughout kernel/mem.
package heap

import "unsafe"

const (
	alignment     = 8
	splitOverhead = 32 // minimum leftover payload size that justifies a split
)

// block is the intrusive header prefixed to every allocation, live or free.
type block struct {
	size uintptr // payload size, excluding this header
	used bool
	next *block
}

// headerSize is the header rounded up to the allocator alignment, so every
// payload (header address + headerSize) keeps the 8-byte alignment.
const headerSize = (unsafe.Sizeof(block{}) + alignment - 1) &^ (alignment - 1)

var head *block

// Init carves out one large free block spanning [base, base+size) to seed
// the allocator. size must be at least headerSize-worth of usable space.
func Init(base uintptr, size uintptr) {
	b := (*block)(unsafe.Pointer(base))
	*b = block{size: size - headerSize}
	head = b
}

func align(n uintptr) uintptr {
	return (n + alignment - 1) &^ (alignment - 1)
}

func payloadAddr(b *block) uintptr {
	return uintptr(unsafe.Pointer(b)) + headerSize
}

// Alloc returns a pointer to a payload of at least n bytes, or 0 if no block
// is large enough. n is rounded up to the allocator's 8-byte alignment.
// First-fit: the first free block large enough is used, split in place if
// the remainder is at least headerSize+32 bytes.
func Alloc(n uintptr) uintptr {
	n = align(n)

	for b := head; b != nil; b = b.next {
		if b.used || b.size < n {
			continue
		}

		if b.size >= n+headerSize+splitOverhead {
			split(b, n)
		}
		b.used = true
		return payloadAddr(b)
	}
	return 0
}

// split carves a new free block out of the tail of b, leaving b with
// exactly n bytes of payload.
func split(b *block, n uintptr) {
	newBlockAddr := payloadAddr(b) + n
	newBlock := (*block)(unsafe.Pointer(newBlockAddr))
	*newBlock = block{
		size: b.size - n - headerSize,
		next: b.next,
	}

	b.size = n
	b.next = newBlock
}

// AllocZeroed behaves like Alloc but zero-fills the returned payload.
func AllocZeroed(n uintptr) uintptr {
	p := Alloc(n)
	if p == 0 {
		return 0
	}
	b := headerOf(p)
	buf := rawBytes(p, int(b.size))
	for i := range buf {
		buf[i] = 0
	}
	return p
}

func headerOf(p uintptr) *block {
	return (*block)(unsafe.Pointer(p - headerSize))
}

// Free marks the block backing payload pointer p as free and coalesces it
// with its immediate successor if that successor is also free. Freeing a
// pointer not obtained from Alloc/AllocZeroed is undefined, matching the
// original allocator's contract.
func Free(p uintptr) {
	b := headerOf(p)
	b.used = false

	if b.next != nil && !b.next.used {
		b.size += headerSize + b.next.size
		b.next = b.next.next
	}
}

func rawBytes(addr uintptr, length int) []byte {
	type sliceHeader struct {
		Data uintptr
		Len  int
		Cap  int
	}
	var s []byte
	hdr := (*sliceHeader)(unsafe.Pointer(&s))
	hdr.Data = addr
	hdr.Len = length
	hdr.Cap = length
	return s
}
