package heap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestHeap creates a heap with captured output and diagnostics writers.
func newTestHeap(t testing.TB) (*Heap, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	h, err := New(WithOutput(out), WithDiagnostics(diag))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h, out, diag
}

// arenaBlock is one entry of the census taken by walkArena.
type arenaBlock struct {
	hd    int
	size  uint64
	alloc bool
}

// walkArena traverses the heap from the prologue via the successor relation
// and returns every block including both sentinels. It fails the test if the
// walk does not terminate at the epilogue.
func walkArena(t testing.TB, h *Heap) []arenaBlock {
	t.Helper()

	blocks := []arenaBlock{{h.top, blockSize(h.data, h.top), true}}
	for hd := nextBlock(h.data, h.top); ; hd = nextBlock(h.data, hd) {
		size := blockSize(h.data, hd)
		alloc := isAlloc(h.data, hd)
		blocks = append(blocks, arenaBlock{hd, size, alloc})
		if size == 0 {
			require.True(t, alloc, "epilogue must carry the ALLOC bit")
			require.Equal(t, h.end, hd, "heap walk must terminate at the epilogue")
			return blocks
		}
		require.Less(t, hd, len(h.data), "heap walk escaped the arena")
	}
}

// checkHeapInvariants asserts every structural invariant that must hold
// after any public call: block sizing and footer mirroring, the neighbor
// flag relation, the coalescing invariant, list membership, guard bytes,
// and statistics consistency.
func checkHeapInvariants(t testing.TB, h *Heap) {
	t.Helper()

	blocks := walkArena(t, h)
	require.GreaterOrEqual(t, len(blocks), 2)

	// Prologue.
	require.Equal(t, wordSize, h.top)
	require.True(t, blocks[0].alloc)
	require.EqualValues(t, 2*wordSize, blocks[0].size)

	// Per-block structure for user blocks.
	for _, b := range blocks[1 : len(blocks)-1] {
		require.GreaterOrEqual(t, b.size, uint64(minBlock), "undersized block at 0x%x", b.hd)
		require.Zero(t, b.size%alignment, "misaligned block size at 0x%x", b.hd)
		if !b.alloc {
			require.Equal(t, headerWord(h.data, b.hd), headerWord(h.data, footerOf(h.data, b.hd)),
				"free block footer does not mirror header at 0x%x", b.hd)
		}
	}

	// Neighbor flag relation and the coalescing invariant.
	for i := 1; i < len(blocks)-1; i++ {
		b := blocks[i]
		require.Equal(t, blocks[i-1].alloc, isPrevAlloc(h.data, b.hd),
			"PREV_ALLOC mismatch at 0x%x", b.hd)
		require.Equal(t, blocks[i+1].alloc, isNextAlloc(h.data, b.hd),
			"NEXT_ALLOC mismatch at 0x%x", b.hd)
		if !b.alloc {
			require.True(t, blocks[i-1].alloc, "adjacent free blocks at 0x%x", b.hd)
			require.True(t, blocks[i+1].alloc, "adjacent free blocks at 0x%x", b.hd)
		}
	}
	last := blocks[len(blocks)-1]
	require.Equal(t, blocks[len(blocks)-2].alloc, isPrevAlloc(h.data, last.hd))
	require.True(t, isNextAlloc(h.data, last.hd))

	// List membership.
	freeSet := make(map[int]bool)
	for hd := h.freeHead; hd != 0; hd = listNext(h.data, hd) {
		require.False(t, isAlloc(h.data, hd), "allocated block on free list at 0x%x", hd)
		require.False(t, freeSet[hd], "free list cycle at 0x%x", hd)
		freeSet[hd] = true
	}
	allocSet := make(map[int]bool)
	var activeSum uint64
	for hd := h.allocHead; hd != 0; hd = listNext(h.data, hd) {
		require.True(t, isAlloc(h.data, hd), "free block on alloc list at 0x%x", hd)
		require.False(t, allocSet[hd], "alloc list cycle at 0x%x", hd)
		allocSet[hd] = true
		activeSum += reqSize(h.data, hd)
	}

	nFree, nAlloc := 0, 0
	for _, b := range blocks[1 : len(blocks)-1] {
		if b.alloc {
			nAlloc++
			require.True(t, allocSet[b.hd], "allocated block missing from alloc list at 0x%x", b.hd)

			req := reqSize(h.data, b.hd)
			payload := payloadOf(b.hd)
			require.True(t, checkGuard(h.data, payload+int(req)),
				"guard bytes clobbered at 0x%x", b.hd)
			require.Equal(t, b.hd, selfAddr(h.data, b.hd),
				"self-address mismatch at 0x%x", b.hd)
			require.LessOrEqual(t, h.stats.HeapMin, uint64(payload))
			require.GreaterOrEqual(t, h.stats.HeapMax, uint64(payload)+req)
		} else {
			nFree++
			require.True(t, freeSet[b.hd], "free block missing from free list at 0x%x", b.hd)
		}
	}
	require.Len(t, freeSet, nFree, "free list and census disagree")
	require.Len(t, allocSet, nAlloc, "alloc list and census disagree")

	// Statistics consistency.
	require.EqualValues(t, nAlloc, h.stats.NActive)
	require.Equal(t, activeSum, h.stats.ActiveSize)
	require.Equal(t, h.stats.NTotal, h.stats.NActive+h.stats.NFree)
}

// freeListLen counts the free list.
func freeListLen(h *Heap) int {
	n := 0
	for hd := h.freeHead; hd != 0; hd = listNext(h.data, hd) {
		n++
	}
	return n
}

// allocListLen counts the alloc list.
func allocListLen(h *Heap) int {
	n := 0
	for hd := h.allocHead; hd != 0; hd = listNext(h.data, hd) {
		n++
	}
	return n
}

// fillPayload writes a repeating byte pattern over the requested bytes of p.
func fillPayload(h *Heap, p Ptr, c byte) {
	b := h.Bytes(p)
	for i := range b {
		b[i] = c
	}
}
