package heap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_FreeNullIsNoOp(t *testing.T) {
	h, _, diag := newTestHeap(t)

	h.Free(0)
	require.Empty(t, diag.String())
	require.Zero(t, h.Stats().NFree)
}

func Test_FreeNotInHeap(t *testing.T) {
	h, _, diag := newTestHeap(t)

	// Nothing allocated yet: the statistics bracket is empty and every
	// pointer is out of range.
	h.FreeAt(Ptr(4096), "caller.go", 11)
	require.Equal(t,
		"MEMORY BUG: caller.go:11: invalid free of pointer 0x1000, not in heap\n",
		diag.String())

	diag.Reset()
	p := h.Alloc(100)
	h.FreeAt(p+(1<<20), "caller.go", 12)
	require.Contains(t, diag.String(), "not in heap")

	// The live allocation is untouched.
	require.EqualValues(t, 1, h.Stats().NActive)
	checkHeapInvariants(t, h)
}

func Test_FreeMisaligned(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(100)
	bad := p + 8 // word-aligned but not payload-aligned
	h.FreeAt(bad, "caller.go", 21)
	require.Equal(t,
		fmt.Sprintf("MEMORY BUG: caller.go:21: invalid free of pointer %s, not allocated\n",
			ptrString(bad)),
		diag.String())

	require.EqualValues(t, 1, h.Stats().NActive)
	checkHeapInvariants(t, h)
}

func Test_DoubleFree(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(100)
	q := h.Alloc(100) // keeps p's block from merging with the tail
	require.NotZero(t, q)

	h.Free(p)
	require.Empty(t, diag.String())

	h.FreeAt(p, "caller.go", 33)
	require.Equal(t,
		fmt.Sprintf("MEMORY BUG: caller.go:33: invalid free of pointer %s, double free\n",
			ptrString(p)),
		diag.String())

	// Statistics and lists are untouched by the failed free.
	require.EqualValues(t, 1, h.Stats().NFree)
	require.EqualValues(t, 1, h.Stats().NActive)
	checkHeapInvariants(t, h)
}

func Test_WildWriteDetection(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(10)
	// Overrun the payload by one byte, into the guard.
	h.data[int(p)+10] ^= 0xFF

	h.FreeAt(p, "caller.go", 44)
	require.Equal(t,
		fmt.Sprintf("MEMORY BUG: caller.go:44: detected wild write during free of pointer %s\n",
			ptrString(p)),
		diag.String())

	// The block is still considered live.
	require.EqualValues(t, 1, h.Stats().NActive)
	require.EqualValues(t, 0, h.Stats().NFree)
}

func Test_InteriorPointerAnnotated(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.AllocAt(100, "maker.go", 55)
	fillPayload(h, p, 0) // deterministic non-header bytes inside the payload

	bad := p + 32
	h.FreeAt(bad, "caller.go", 56)
	require.Equal(t,
		fmt.Sprintf("MEMORY BUG: caller.go:56: invalid free of pointer %s, not allocated\n",
			ptrString(bad))+
			fmt.Sprintf("\tmaker.go:55: %s is 32 bytes inside a 100 byte region allocated here\n",
				ptrString(bad)),
		diag.String())

	require.EqualValues(t, 1, h.Stats().NActive)
	checkHeapInvariants(t, h)
}

// Test_InteriorPointerIntoFreeBlock: a stray pointer into a free region gets
// the plain diagnostic, with no containing-region annotation.
func Test_InteriorPointerIntoFreeBlock(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(100)
	q := h.Alloc(100)
	require.NotZero(t, q)
	fillPayload(h, p, 0)
	h.Free(p)

	bad := p + 32
	h.FreeAt(bad, "caller.go", 61)
	require.Equal(t,
		fmt.Sprintf("MEMORY BUG: caller.go:61: invalid free of pointer %s, not allocated\n",
			ptrString(bad)),
		diag.String())
	checkHeapInvariants(t, h)
}

// Test_StalePointerAfterReallocMove reallocates a block pinned between two
// live neighbors, forcing the allocate-copy-free path, and then frees the
// stale pointer. By then the intermediate frees have merged the old block's
// bytes into larger spans, so the stale header no longer describes a
// plausible free block and the diagnostic is "not allocated".
func Test_StalePointerAfterReallocMove(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p1 := h.Alloc(100)
	p2 := h.Alloc(100)
	p3 := h.Alloc(8 << 19)
	require.NotZero(t, p3)

	p4 := h.Realloc(p2, 500)
	require.NotZero(t, p4)
	require.NotEqual(t, p2, p4, "pinned block must move")
	require.Empty(t, diag.String())

	h.Free(p1)
	h.Free(p3)
	h.Free(p4)

	h.FreeAt(p2, "caller.go", 71)
	require.Equal(t,
		fmt.Sprintf("MEMORY BUG: caller.go:71: invalid free of pointer %s, not allocated\n",
			ptrString(p2)),
		diag.String())

	require.Zero(t, h.Stats().NActive)
	checkHeapInvariants(t, h)
}

// Test_FabricatedAllocPattern scribbles something header-like inside a live
// payload and tries to free through it; whatever check trips first, the call
// must be rejected and the heap left intact.
func Test_FabricatedAllocPattern(t *testing.T) {
	h, _, diag := newTestHeap(t)

	p := h.Alloc(256)
	b := h.Bytes(p)
	for i := range b {
		b[i] = 0xA5 // sets ALLOC-looking bit patterns everywhere
	}

	h.FreeAt(p+64, "caller.go", 81)
	require.Contains(t, diag.String(), "MEMORY BUG: caller.go:81:")

	require.EqualValues(t, 1, h.Stats().NActive)
	checkHeapInvariants(t, h)
}

// Test_ValidFreeAfterNeighborChurn: heavy neighbor traffic must not make a
// legitimate free look suspicious.
func Test_ValidFreeAfterNeighborChurn(t *testing.T) {
	h, _, diag := newTestHeap(t)

	var ptrs [6]Ptr
	for i := range ptrs {
		ptrs[i] = h.Alloc(64)
	}
	h.Free(ptrs[0])
	h.Free(ptrs[2])
	h.Free(ptrs[4])
	h.Free(ptrs[1]) // triple merge
	h.Free(ptrs[3])
	h.Free(ptrs[5])

	require.Empty(t, diag.String())
	require.Zero(t, h.Stats().NActive)
	require.Equal(t, 1, freeListLen(h))
	checkHeapInvariants(t, h)
}
