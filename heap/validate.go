package heap

import "fmt"

// Free-pointer classification.
//
// validateFree decides whether p may be freed. Every rejection prints one
// MEMORY BUG line (and possibly a containing-region annotation) on the
// diagnostics writer and leaves the heap untouched.
//
// The checks are ordered from cheapest to most expensive; the one list walk
// (containsPtr) only runs on a free that has already failed.
func (h *Heap) validateFree(p Ptr, file string, line int) bool {
	// Not in heap: the statistics bracket every payload ever handed out.
	if uint64(p) < h.stats.HeapMin || uint64(p) > h.stats.HeapMax {
		fmt.Fprintf(h.diag, "MEMORY BUG: %s:%d: invalid free of pointer %s, not in heap\n",
			file, line, ptrString(p))
		return false
	}

	// We never hand out misaligned pointers.
	if uint64(p)%alignment != 0 {
		fmt.Fprintf(h.diag, "MEMORY BUG: %s:%d: invalid free of pointer %s, not allocated\n",
			file, line, ptrString(p))
		return false
	}

	hd := headerOf(int(p))

	// If the block *looks* like a free block...
	if !isAlloc(h.data, hd) {
		if h.isFreeBlock(hd) { // check if it's a *real* free block
			fmt.Fprintf(h.diag, "MEMORY BUG: %s:%d: invalid free of pointer %s, double free\n",
				file, line, ptrString(p))
			return false
		}

		fmt.Fprintf(h.diag, "MEMORY BUG: %s:%d: invalid free of pointer %s, not allocated\n",
			file, line, ptrString(p))
		if container := h.containsPtr(p); container != 0 { // inside a live allocation?
			diff := uint64(p) - uint64(payloadOf(container))
			fmt.Fprintf(h.diag, "\t%s:%d: %s is %d bytes inside a %d byte region allocated here\n",
				h.fileName(fileIndex(h.data, container)),
				callerLine(h.data, container),
				ptrString(p), diff, reqSize(h.data, container))
		}
		return false
	}

	// The block carries the ALLOC bit. Make sure its size is one this
	// allocator could have produced before trusting the metadata slots.
	size := blockSize(h.data, hd)
	if size < minBlock || size%alignment != 0 ||
		size > uint64(len(h.data)) || hd+int(size) > len(h.data) {
		fmt.Fprintf(h.diag, "MEMORY BUG: %s:%d: invalid free of pointer %s, not allocated\n",
			file, line, ptrString(p))
		return false
	}

	// Check for a buffer overrun past the requested size.
	if !checkGuard(h.data, int(p)+int(reqSize(h.data, hd))) {
		fmt.Fprintf(h.diag, "MEMORY BUG: %s:%d: detected wild write during free of pointer %s\n",
			file, line, ptrString(p))
		return false
	}

	// Check that the block is where the block thinks it is.
	if selfAddr(h.data, hd) != hd {
		fmt.Fprintf(h.diag, "MEMORY BUG: %s:%d: invalid free of pointer %s, not allocated\n",
			file, line, ptrString(p))
		return false
	}

	// Check in constant time that the block is actually in the alloc list.
	if !h.validateBlockLinks(hd) {
		fmt.Fprintf(h.diag, "MEMORY BUG: %s:%d: invalid free of pointer %s, not allocated\n",
			file, line, ptrString(p))
		return false
	}

	return true
}

// isFreeBlock reports whether hd plausibly heads a real free block: nonzero
// size, in-bounds footer that mirrors the header, and a footer that is also
// marked free.
func (h *Heap) isFreeBlock(hd int) bool {
	size := blockSize(h.data, hd)
	if size == 0 || size > uint64(len(h.data)) {
		return false
	}
	footer := hd + int(size) - wordSize
	if footer <= hd || footer+wordSize > len(h.data) {
		return false
	}
	return headerWord(h.data, footer)&allocBit == 0 &&
		blockSize(h.data, footer) == size
}

// validateBlockLinks checks that the block's list neighbors point back to it.
// A fabricated block that happens to carry the ALLOC bit pattern fails here.
func (h *Heap) validateBlockLinks(hd int) bool {
	next := listNext(h.data, hd)
	prev := listPrev(h.data, hd)
	if next != 0 && (!h.plausibleHeader(next) || listPrev(h.data, next) != hd) {
		return false
	}
	if prev != 0 && (!h.plausibleHeader(prev) || listNext(h.data, prev) != hd) {
		return false
	}
	return true
}

// plausibleHeader reports whether hd could head a block whose metadata slots
// are safe to read: in bounds, with a size this allocator could have written.
func (h *Heap) plausibleHeader(hd int) bool {
	if hd < wordSize || hd+wordSize > len(h.data) {
		return false
	}
	size := blockSize(h.data, hd)
	return size >= minBlock && size%alignment == 0 &&
		size <= uint64(len(h.data)) && hd+int(size) <= len(h.data)
}

// containsPtr walks the alloc list for a live block whose payload range
// strictly contains p, returning its header or 0. Interior pointers into
// free blocks are deliberately not annotated.
func (h *Heap) containsPtr(p Ptr) int {
	for hd := h.allocHead; hd != 0; hd = listNext(h.data, hd) {
		payload := uint64(payloadOf(hd))
		if uint64(p) > payload && uint64(p) < payload+reqSize(h.data, hd) {
			return hd
		}
	}
	return 0
}
