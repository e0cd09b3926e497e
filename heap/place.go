package heap

import "github.com/joshuapare/guardheap/internal/format"

// adjustedSize returns the whole-block size needed to satisfy a request of
// sz payload bytes: the allocated-metadata envelope plus the payload,
// rounded up to the alignment, and never below the minimum block size.
func adjustedSize(sz uint64) uint64 {
	if sz <= minPayload {
		return minBlock
	}
	return format.Align16(sz + allocMetaSize)
}

// findFit walks the explicit free list and returns the header of the first
// block of at least asize bytes, or 0 if none fits.
func (h *Heap) findFit(asize uint64) int {
	for hd := h.freeHead; hd != 0; hd = listNext(h.data, hd) {
		if blockSize(h.data, hd) >= asize {
			return hd
		}
	}
	return 0
}

// place carves an allocated block of asize bytes out of the free block at
// hd. The remainder becomes a new free block when it can hold at least the
// minimum block; otherwise the whole block is used and the physical
// successor is told its predecessor is now allocated.
func (h *Heap) place(hd int, asize uint64) {
	h.unlink(&h.freeHead, hd)

	size := blockSize(h.data, hd)
	if size-asize >= minBlock { // split the block
		newFree := hd + int(asize)
		setHeaderAndFooter(h.data, newFree, size-asize, prevAllocBit|nextAllocBit)
		h.pushFront(&h.freeHead, newFree)
		setHeaderAndFooter(h.data, hd, asize, allocBit|prevAllocBit)
	} else { // absorb the remainder
		setHeaderAndFooter(h.data, hd, size, allocBit|prevAllocBit|nextAllocBit)
		toggleNextFlags(h.data, hd, prevAllocBit) // let the next block know
	}

	togglePrevFlags(h.data, hd, nextAllocBit) // let the prev block know
	h.pushFront(&h.allocHead, hd)
}

// setAllocMetadata stores the allocated-block envelope: requested size,
// caller location, self-address, and the tail guard.
func (h *Heap) setAllocMetadata(hd int, sz uint64, file string, line int) {
	setLineAndReqSize(h.data, hd, line, sz)
	writeGuard(h.data, payloadOf(hd)+int(sz))
	setFileIndex(h.data, hd, h.internFile(file))
	setSelfAddr(h.data, hd)
}
