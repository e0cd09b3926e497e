package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ReallocNullBehavesAsAlloc(t *testing.T) {
	h, _, _ := newTestHeap(t)

	p := h.Realloc(0, 100)
	require.NotZero(t, p)
	require.EqualValues(t, 1, h.Stats().NTotal)
	require.EqualValues(t, 100, h.Stats().ActiveSize)
	checkHeapInvariants(t, h)
}

func Test_ReallocToZeroReturnsNull(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(100)
	require.Zero(t, h.Realloc(p, 0))

	// The original allocation is untouched and still freeable.
	require.EqualValues(t, 1, h.Stats().NActive)
	h.Free(p)
	require.Empty(t, diag.String())
	checkHeapInvariants(t, h)
}

func Test_ReallocSameRequestedSize(t *testing.T) {
	h, _, _ := newTestHeap(t)

	p := h.Alloc(100)
	stats := h.Stats()

	q := h.Realloc(p, 100)
	require.Equal(t, p, q)
	require.Equal(t, stats, h.Stats(), "exact fit must not move statistics")
	checkHeapInvariants(t, h)
}

// Test_ReallocAbsorbsPredecessor covers the coalescing-realloc scenario: ten
// live blocks, a two-block hole, and a grow of the block right after it. The
// grow succeeds in place by sliding into the hole; the physical successor is
// untouched.
func Test_ReallocAbsorbsPredecessor(t *testing.T) {
	h, _, diag := newTestHeap(t)

	var ptrs [10]Ptr
	for i := range ptrs {
		ptrs[i] = h.Alloc(100)
		require.NotZero(t, ptrs[i])
	}
	h.Free(ptrs[3])
	h.Free(ptrs[4]) // hole of 352 bytes before ptrs[5]

	fillPayload(h, ptrs[5], 0xC3)
	p := h.Realloc(ptrs[5], 150)
	require.NotZero(t, p)
	require.Empty(t, diag.String())

	// The block grew by absorbing its predecessor hole...
	hd := headerOf(int(p))
	require.True(t, isAlloc(h.data, hd))
	require.EqualValues(t, 224, blockSize(h.data, hd))
	require.EqualValues(t, 150, reqSize(h.data, hd))

	// ...its successor is still ptrs[6]...
	require.Equal(t, headerOf(int(ptrs[6])), nextBlock(h.data, hd))

	// ...the payload moved with it...
	for _, b := range h.Bytes(p)[:100] {
		require.Equal(t, byte(0xC3), b)
	}

	// ...and the shrunken hole is a well-formed free block.
	require.False(t, isAlloc(h.data, prevBlock(h.data, hd)))
	require.EqualValues(t, 304, blockSize(h.data, prevBlock(h.data, hd)))

	checkHeapInvariants(t, h)
}

func Test_ReallocAbsorbsSuccessor(t *testing.T) {
	h, _, _ := newTestHeap(t)

	a := h.Alloc(100)
	b := h.Alloc(100)
	c := h.Alloc(100)
	require.NotZero(t, c)
	h.Free(b) // 176-byte hole after a

	fillPayload(h, a, 0x5C)
	p := h.Realloc(a, 150)

	// Growing into the successor keeps the payload base: no move, no copy.
	require.Equal(t, a, p)
	require.EqualValues(t, 224, blockSize(h.data, headerOf(int(p))))
	for _, b := range h.Bytes(p)[:100] {
		require.Equal(t, byte(0x5C), b)
	}

	// The leftover of the hole is free and precedes c.
	rem := nextBlock(h.data, headerOf(int(p)))
	require.False(t, isAlloc(h.data, rem))
	require.EqualValues(t, 128, blockSize(h.data, rem))
	require.Equal(t, headerOf(int(c)), nextBlock(h.data, rem))

	checkHeapInvariants(t, h)
}

func Test_ReallocAbsorbsBothNeighbors(t *testing.T) {
	h, _, _ := newTestHeap(t)

	a := h.Alloc(100)
	b := h.Alloc(100)
	c := h.Alloc(100)
	d := h.Alloc(100)
	require.NotZero(t, d)
	h.Free(a)
	h.Free(c)

	fillPayload(h, b, 0x7E)
	p := h.Realloc(b, 300) // needs 368: neither neighbor alone suffices

	require.NotZero(t, p)
	require.Equal(t, Ptr(payloadOf(headerOf(int(a)))), p, "block starts at the old predecessor")
	require.EqualValues(t, 368, blockSize(h.data, headerOf(int(p))))
	for _, v := range h.Bytes(p)[:100] {
		require.Equal(t, byte(0x7E), v)
	}

	// The leftover tail is free, then d follows.
	tail := nextBlock(h.data, headerOf(int(p)))
	require.False(t, isAlloc(h.data, tail))
	require.EqualValues(t, 160, blockSize(h.data, tail))
	require.Equal(t, headerOf(int(d)), nextBlock(h.data, tail))

	checkHeapInvariants(t, h)
}

// Test_ReallocFallbackCopies pins the allocate-copy-free path: a pinned
// block moves and its first old-request bytes survive the move.
func Test_ReallocFallbackCopies(t *testing.T) {
	h, _, _ := newTestHeap(t)

	p := h.Alloc(100)
	fillPayload(h, p, 'A')
	blocker := h.Alloc(100) // blocks in-place growth
	require.NotZero(t, blocker)

	q := h.Realloc(p, 200)
	require.NotZero(t, q)
	require.NotEqual(t, p, q)
	require.Len(t, h.Bytes(q), 200)
	for _, b := range h.Bytes(q)[:100] {
		require.Equal(t, byte('A'), b)
	}

	checkHeapInvariants(t, h)
}

func Test_ReallocShrinkWithoutSplit(t *testing.T) {
	h, _, _ := newTestHeap(t)

	p := h.Alloc(100)
	fillPayload(h, p, 'B')

	q := h.Realloc(p, 50) // 176 - 128 = 48 < minBlock: nothing to split off
	require.Equal(t, p, q)
	require.EqualValues(t, 176, blockSize(h.data, headerOf(int(q))))
	require.EqualValues(t, 100, reqSize(h.data, headerOf(int(q))), "no-split shrink keeps the old request")
	for _, b := range h.Bytes(q)[:50] {
		require.Equal(t, byte('B'), b)
	}

	checkHeapInvariants(t, h)
}

func Test_ReallocShrinkWithSplit(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(300) // 368-byte block
	blocker := h.Alloc(32)
	require.NotZero(t, blocker)
	fillPayload(h, p, 'B')

	q := h.Realloc(p, 50) // 368 - 128 = 240 >= minBlock: split the tail
	require.Equal(t, p, q)

	hd := headerOf(int(q))
	require.EqualValues(t, 128, blockSize(h.data, hd))
	require.EqualValues(t, 50, reqSize(h.data, hd))
	for _, b := range h.Bytes(q) {
		require.Equal(t, byte('B'), b)
	}

	// The split-off tail is a free block between us and the blocker.
	tail := nextBlock(h.data, hd)
	require.False(t, isAlloc(h.data, tail))
	require.EqualValues(t, 240, blockSize(h.data, tail))
	require.False(t, isNextAlloc(h.data, hd))
	require.False(t, isPrevAlloc(h.data, headerOf(int(blocker))))

	require.Empty(t, diag.String())
	checkHeapInvariants(t, h)
}

// Test_ReallocShrinkTailMergesForward: when the successor is already free,
// the split-off tail coalesces with it instead of stranding two adjacent
// free blocks.
func Test_ReallocShrinkTailMergesForward(t *testing.T) {
	h, _, _ := newTestHeap(t)

	p := h.Alloc(500) // 576-byte block
	q := h.Alloc(100)
	blocker := h.Alloc(32)
	require.NotZero(t, blocker)
	h.Free(q) // 176-byte hole right after p

	r := h.Realloc(p, 100) // 576 -> 176, split off a 400-byte tail
	require.Equal(t, p, r)
	require.EqualValues(t, 176, blockSize(h.data, headerOf(int(r))))

	// The tail merged with the hole into one free block before the blocker.
	tail := nextBlock(h.data, headerOf(int(r)))
	require.False(t, isAlloc(h.data, tail))
	require.EqualValues(t, 576, blockSize(h.data, tail))
	require.Equal(t, headerOf(int(blocker)), nextBlock(h.data, tail))

	checkHeapInvariants(t, h)
}

func Test_ReallocFailureLeavesOriginalIntact(t *testing.T) {
	h, _, _ := newTestHeap(t)

	p := h.Alloc(100)
	fillPayload(h, p, 0x42)

	q := h.Realloc(p, ArenaSize) // cannot fit anywhere
	require.Zero(t, q)
	require.EqualValues(t, 1, h.Stats().NFail)

	// Original untouched and still live.
	require.EqualValues(t, 1, h.Stats().NActive)
	for _, b := range h.Bytes(p) {
		require.Equal(t, byte(0x42), b)
	}
	checkHeapInvariants(t, h)
}

func Test_ReallocOfInvalidPointer(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(100)
	q := h.Alloc(100)
	h.Free(q)

	// Double-freed pointer: realloc diagnoses and returns null.
	r := h.ReallocAt(q, 200, "caller.go", 91)
	require.Zero(t, r)
	require.Contains(t, diag.String(), "double free")

	require.EqualValues(t, 1, h.Stats().NActive)
	require.NotZero(t, p)
	checkHeapInvariants(t, h)
}

// Test_ReallocAccountsFreePlusAlloc: an in-place resize is one free plus one
// allocation in the statistics.
func Test_ReallocAccountsFreePlusAlloc(t *testing.T) {
	h, _, _ := newTestHeap(t)

	p := h.Alloc(100)
	before := h.Stats()

	q := h.Realloc(p, 150) // grows in place into the arena tail
	require.Equal(t, p, q)

	after := h.Stats()
	require.Equal(t, before.NTotal+1, after.NTotal)
	require.Equal(t, before.NFree+1, after.NFree)
	require.Equal(t, before.NActive, after.NActive)
	require.Equal(t, before.ActiveSize+50, after.ActiveSize)
	require.Equal(t, before.FreedSize+100, after.FreedSize)
	require.Equal(t, before.TotalSize+150, after.TotalSize)
	checkHeapInvariants(t, h)
}

// Test_ManyReallocs grows one allocation a byte at a time for a million
// rounds, then frees it. Every structural invariant must hold at the end.
func Test_ManyReallocs(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(1)
	require.NotZero(t, p)
	for i := 0; i < 1_000_000; i++ {
		p = h.Realloc(p, uint64(i+2))
		if p == 0 {
			t.Fatalf("realloc to %d bytes failed", i+2)
		}
	}
	require.EqualValues(t, 1_000_001, reqSize(h.data, headerOf(int(p))))

	h.Free(p)
	require.Empty(t, diag.String())
	require.Zero(t, h.Stats().NActive)
	require.Zero(t, h.Stats().ActiveSize)
	checkHeapInvariants(t, h)
}
