// Package heap implements a debugging allocator over a single fixed-size,
// process-private 8 MiB arena.
//
// # Overview
//
// The allocator services the classical four operations - Alloc, Free,
// Calloc, Realloc - and tags every allocation with its caller's source
// location. On top of the placement engine it layers diagnostic machinery:
// double-free detection, wild-free detection, buffer-overflow detection via
// an 8-byte tail guard, a leak report, and cumulative statistics.
//
// # Block format
//
// Blocks carry boundary tags: a header word and a mirrored footer word, each
// encoding (size | status bits). Three status bits track whether the block
// and its physical neighbors are allocated, which lets the coalescer merge a
// freed block with a free neighbor in O(1). Allocated blocks additionally
// reserve a six-word metadata envelope before the footer (list links,
// self-address back-pointer, source file, line, requested size) and the
// guard bytes "kimbora!" immediately after the payload.
//
// Free and allocated blocks keep their list links at the same offsets from
// the footer, so list splicing is oblivious to block state.
//
// # Placement
//
// Allocation is first-fit over an explicit LIFO free list. A chosen block is
// split when the remainder can hold a minimum block; otherwise the whole
// block is used. Freeing coalesces with free physical neighbors via the
// boundary tags. Realloc expands in place by absorbing the predecessor, the
// successor, or both, and only falls back to allocate-copy-free when no
// neighbor arrangement works.
//
// # Diagnostics
//
// Free and Realloc validate their pointer argument before touching the
// heap. An invalid pointer produces one MEMORY BUG line on the diagnostics
// writer and leaves the heap untouched:
//
//	MEMORY BUG: file.go:12: invalid free of pointer 0x1a0, not in heap
//	MEMORY BUG: file.go:12: invalid free of pointer 0x1a0, double free
//	MEMORY BUG: file.go:12: invalid free of pointer 0x1a0, not allocated
//	MEMORY BUG: file.go:12: detected wild write during free of pointer 0x1a0
//
// # Usage Example
//
//	h, err := heap.New()
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	p := h.Alloc(256)
//	if p == 0 {
//	    return errors.New("out of arena space")
//	}
//	copy(h.Bytes(p), payload)
//
//	p = h.Realloc(p, 512)
//	h.Free(p)
//
//	h.PrintStatistics()
//	h.PrintLeakReport()
//
// # Thread Safety
//
// A Heap is single-threaded by construction. Callers must synchronize
// access externally.
package heap
