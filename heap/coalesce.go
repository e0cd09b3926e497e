package heap

// coalesce merges the just-freed block at hd with whichever physical
// neighbors are free, pushes the result onto the free list, and returns its
// header. The PREV_ALLOC/NEXT_ALLOC bits still reflect the block's state
// before the free, which is exactly the information needed to decide the
// merge direction.
func (h *Heap) coalesce(hd int) int {
	prevAlloc := isPrevAlloc(h.data, hd)
	nextAlloc := isNextAlloc(h.data, hd)
	size := blockSize(h.data, hd)
	prev := prevBlock(h.data, hd)
	next := nextBlock(h.data, hd)

	switch {
	case prevAlloc && nextAlloc: // no merge
		setHeaderAndFooter(h.data, hd, size, prevAllocBit|nextAllocBit)
		toggleNextFlags(h.data, hd, prevAllocBit)
		togglePrevFlags(h.data, hd, nextAllocBit)

	case prevAlloc && !nextAlloc: // merge with successor
		hd = h.coalesceNext(hd, next)
		togglePrevFlags(h.data, hd, nextAllocBit)

	case !prevAlloc && nextAlloc: // merge with predecessor
		hd = h.coalescePrev(hd, prev)
		toggleNextFlags(h.data, hd, prevAllocBit)

	default: // merge in both directions
		hd = h.coalescePrev(hd, prev)
		hd = h.coalesceNext(hd, next)
	}

	h.pushFront(&h.freeHead, hd)
	return hd
}

// coalesceNext absorbs the free successor at next into the block at hd and
// removes the successor from the free list.
func (h *Heap) coalesceNext(hd, next int) int {
	size := blockSize(h.data, hd) + blockSize(h.data, next)
	h.unlink(&h.freeHead, next)
	setHeaderAndFooter(h.data, hd, size, prevAllocBit|nextAllocBit)
	return hd
}

// coalescePrev absorbs the block at hd into its free predecessor at prev
// and removes the predecessor from the free list. The merged header is the
// predecessor's.
func (h *Heap) coalescePrev(hd, prev int) int {
	size := blockSize(h.data, hd) + blockSize(h.data, prev)
	h.unlink(&h.freeHead, prev)
	setHeaderAndFooter(h.data, prev, size, prevAllocBit|nextAllocBit)
	return prev
}
