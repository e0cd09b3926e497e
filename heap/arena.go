package heap

// layoutArena lays down the three initial blocks over freshly mapped bytes.
//
// Word 0 of the arena is left unused so that every payload lands on a
// 16-byte boundary. The prologue and epilogue are allocated sentinels: no
// user block ever borders the edge of the arena, so the coalescer never has
// to reason about missing neighbors.
func (h *Heap) layoutArena() {
	// Prologue: one payload word, allocated.
	prologue := wordSize
	prologueSize := uint64(2 * wordSize)
	setHeaderAndFooter(h.data, prologue, prologueSize, allocBit|prevAllocBit)

	// Initial free block: everything between the sentinels.
	free := nextBlock(h.data, prologue)
	freeSize := uint64(len(h.data)) - prologueSize - 2*wordSize
	setHeaderAndFooter(h.data, free, freeSize, prevAllocBit|nextAllocBit)
	setListNext(h.data, free, 0)
	setListPrev(h.data, free, 0)

	// Epilogue: zero-sized, allocated, no footer.
	end := nextBlock(h.data, free)
	setHeaderOnly(h.data, end, 0, allocBit|nextAllocBit)

	h.freeHead = free
	h.allocHead = 0
	h.top = prologue
	h.end = end
}

// setHeaderOnly writes just the header word; used for the epilogue, which
// has no room for a footer.
func setHeaderOnly(b []byte, hd int, size, flags uint64) {
	putHeaderWord(b, hd, size|flags)
}
