package heap

import "math"

// ReallocAt is Realloc with an explicit source location.
//
// Expansion prefers growing in place by absorbing a free physical neighbor
// (predecessor, successor, or both) over moving the payload; only when no
// neighbor arrangement leaves a viable remainder does it fall back to
// allocate-copy-free. Contraction splits the tail into a new free block when
// the tail is big enough to stand alone. Either way the statistics account
// an in-place resize as one free plus one allocation.
//
// A Realloc that fails leaves the original allocation intact and owned by
// the caller.
func (h *Heap) ReallocAt(p Ptr, newSize uint64, file string, line int) Ptr {
	if p == 0 {
		return h.AllocAt(newSize, file, line)
	}
	if newSize == 0 {
		return 0
	}

	// Detect unsigned integer overflow in the size adjustment.
	if newSize > math.MaxUint64-(alignment+allocMetaSize) {
		h.recordFail(newSize)
		return 0
	}
	asize := adjustedSize(newSize)

	if !h.validateFree(p, file, line) {
		return 0
	}

	oldHeader := headerOf(int(p))
	oldReq := reqSize(h.data, oldHeader)
	oldSize := blockSize(h.data, oldHeader)
	prev := prevBlock(h.data, oldHeader)
	next := nextBlock(h.data, oldHeader)

	var prevAvail, nextAvail uint64
	if !isPrevAlloc(h.data, oldHeader) {
		prevAvail = blockSize(h.data, prev)
	}
	if !isNextAlloc(h.data, oldHeader) {
		nextAvail = blockSize(h.data, next)
	}

	switch {
	case newSize > oldReq:
		newHeader, ok := h.expandInPlace(p, oldHeader, oldReq, oldSize, asize,
			prev, next, prevAvail, nextAvail)
		if !ok {
			// No room in place: allocate, copy, free.
			np := h.AllocAt(newSize, file, line)
			if np == 0 {
				return 0
			}
			copy(h.data[np:uint64(np)+oldReq], h.data[p:uint64(p)+oldReq])
			h.FreeAt(p, file, line)
			return np
		}

		h.recordFree(oldReq)
		h.setAllocMetadata(newHeader, newSize, file, line)
		h.pushFront(&h.allocHead, newHeader)
		h.recordMalloc(newHeader, newSize)
		h.assertf(reqSize(h.data, newHeader) == newSize, "resized block has wrong requested size")
		return Ptr(payloadOf(newHeader))

	case newSize < oldSize:
		if oldSize-asize >= minBlock {
			// The list links sit before the footer, which moves with the
			// shrink: unlink while the old links are still in place.
			h.unlink(&h.allocHead, oldHeader)
			h.contractInPlace(oldHeader, oldSize, asize, prev, next)
			h.setAllocMetadata(oldHeader, newSize, file, line)
			h.pushFront(&h.allocHead, oldHeader)
			h.recordFree(oldReq)
			h.recordMalloc(oldHeader, newSize)
		}
		return p

	default: // newSize was identical to the existing size
		return p
	}
}

// expandInPlace tries the three in-place expansion options in order,
// returning the header of the resized block. The subtraction guards run on
// uint64 exactly as written: the leading capacity test makes the modular
// result meaningful whenever it is reached.
func (h *Heap) expandInPlace(p Ptr, oldHeader int, oldReq, oldSize, asize uint64,
	prev, next int, prevAvail, nextAvail uint64) (int, bool) {

	switch {
	// Sufficient space by absorbing the predecessor.
	case prevAvail+oldSize >= asize && prevAvail-(asize-oldSize) >= minBlock:
		h.unlink(&h.allocHead, oldHeader)
		newFreeSize := prevAvail - (asize - oldSize)
		keepBits := blockFlags(h.data, prev) // the shrunken free block keeps these
		newBits := uint64(allocBit)
		if isAlloc(h.data, next) {
			newBits |= nextAllocBit
		}
		h.unlink(&h.freeHead, prev)
		newHeader := prev + int(newFreeSize)
		// Move the payload before any boundary-tag write can land on it.
		h.movePayload(newHeader, p, oldReq)
		setHeaderAndFooter(h.data, prev, newFreeSize, keepBits)
		setHeaderAndFooter(h.data, newHeader, asize, newBits)
		h.pushFront(&h.freeHead, prev)
		return newHeader, true

	// Sufficient space by absorbing the successor. The payload base does
	// not move, so no copy is needed.
	case nextAvail+oldSize >= asize && nextAvail-(asize-oldSize) >= minBlock:
		h.unlink(&h.allocHead, oldHeader)
		newFreeSize := nextAvail - (asize - oldSize)
		keepBits := blockFlags(h.data, next)
		newBits := uint64(allocBit)
		if isAlloc(h.data, prev) {
			newBits |= prevAllocBit
		}
		h.unlink(&h.freeHead, next)
		setHeaderAndFooter(h.data, oldHeader, asize, newBits)
		tail := nextBlock(h.data, oldHeader)
		setHeaderAndFooter(h.data, tail, newFreeSize, keepBits)
		h.pushFront(&h.freeHead, tail)
		return oldHeader, true

	// Sufficient space by using the whole predecessor and part of the
	// successor.
	case prevAvail+nextAvail+oldSize >= asize &&
		nextAvail-(asize-oldSize-prevAvail) >= minBlock:
		h.unlink(&h.allocHead, oldHeader)
		newFreeSize := nextAvail - (asize - oldSize - prevAvail)
		keepBits := blockFlags(h.data, next)
		h.unlink(&h.freeHead, prev)
		h.unlink(&h.freeHead, next)
		newHeader := prev
		h.movePayload(newHeader, p, oldReq)
		setHeaderAndFooter(h.data, newHeader, asize, allocBit|prevAllocBit)
		tail := nextBlock(h.data, newHeader)
		setHeaderAndFooter(h.data, tail, newFreeSize, keepBits)
		// Tell the block before the merged region that its successor is
		// now allocated.
		togglePrevFlags(h.data, newHeader, nextAllocBit)
		h.pushFront(&h.freeHead, tail)
		return newHeader, true
	}

	return 0, false
}

// contractInPlace shrinks the block at oldHeader to asize and turns the tail
// into a free block, merging it with a free successor.
func (h *Heap) contractInPlace(oldHeader int, oldSize, asize uint64, prev, next int) {
	newFreeSize := oldSize - asize
	newBits := uint64(allocBit)
	if isAlloc(h.data, prev) {
		newBits |= prevAllocBit
	}
	nextWasAlloc := isAlloc(h.data, next)

	setHeaderAndFooter(h.data, oldHeader, asize, newBits)
	tail := nextBlock(h.data, oldHeader)
	tailBits := uint64(prevAllocBit)
	if nextWasAlloc {
		tailBits |= nextAllocBit
	}
	setHeaderAndFooter(h.data, tail, newFreeSize, tailBits)

	// coalesce links the tail into the free list, merges it with a free
	// successor, and fixes the successor's PREV_ALLOC bit. It also XORs our
	// NEXT_ALLOC bit on the assumption that we used to border an allocated
	// block, so the shrunken header is rewritten afterwards.
	h.coalesce(tail)
	setHeaderAndFooter(h.data, oldHeader, asize, newBits)
}

// movePayload copies n payload bytes to the payload of dstHeader. The ranges
// may overlap in either direction.
func (h *Heap) movePayload(dstHeader int, src Ptr, n uint64) {
	dst := payloadOf(dstHeader)
	copy(h.data[dst:uint64(dst)+n], h.data[src:uint64(src)+n])
}
