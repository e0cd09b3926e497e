package heap

import (
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"github.com/joshuapare/guardheap/internal/buf"
	"github.com/joshuapare/guardheap/internal/mem"
)

// Debug flag - set to true to enable contract checks and list validation
// (compile-time toggle).
const debugHeap = false

// Runtime debug flag for allocation logging - controlled by GUARDHEAP_LOG env var.
var logHeap = os.Getenv("GUARDHEAP_LOG") != ""

// ArenaSize is the fixed size of the backing arena. The heap never grows.
const ArenaSize = 8 << 20 // 8 MiB

// Ptr identifies an allocation by the byte offset of its payload inside the
// arena. The zero Ptr is the null pointer; no payload ever lives at offset 0.
type Ptr uint64

// Heap is a debugging allocator over one fixed-size private arena. It tracks
// every allocation's source location, guards payload tails against overruns,
// and diagnoses double frees, wild frees, and stray interior pointers.
//
// A Heap is not safe for concurrent use.
type Heap struct {
	data    []byte
	release func() error

	freeHead  int // header offset of the free-list head, 0 = empty
	allocHead int // header offset of the alloc-list head, 0 = empty
	top       int // prologue header offset
	end       int // epilogue header offset

	stats Statistics

	// Source-file strings are interned here; metadata slots store indexes.
	files     []string
	fileIDs map[string]uint64

	out  io.Writer // statistics and leak report
	diag io.Writer // MEMORY BUG diagnostics
}

// Option configures a Heap at construction time.
type Option func(*Heap)

// WithOutput redirects the statistics and leak-report output.
func WithOutput(w io.Writer) Option {
	return func(h *Heap) { h.out = w }
}

// WithDiagnostics redirects the MEMORY BUG diagnostic lines.
func WithDiagnostics(w io.Writer) Option {
	return func(h *Heap) { h.diag = w }
}

// New maps an 8 MiB anonymous private arena and lays down the initial block
// structure: an allocated prologue, one free block spanning the remainder,
// and a zero-sized allocated epilogue.
func New(opts ...Option) (*Heap, error) {
	data, release, err := mem.Region(ArenaSize)
	if err != nil {
		return nil, fmt.Errorf("heap: map arena: %w", err)
	}

	h := &Heap{
		data:    data,
		release: release,
		fileIDs: make(map[string]uint64),
		out:     os.Stdout,
		diag:    os.Stderr,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.stats.HeapMin = math.MaxUint64
	h.layoutArena()
	return h, nil
}

// Close releases the backing arena. Every Ptr handed out by this Heap is
// invalid afterwards.
func (h *Heap) Close() error {
	h.data = nil
	h.freeHead, h.allocHead = 0, 0
	return h.release()
}

// Alloc returns a pointer to sz bytes of uninitialized memory, tagged with
// the caller's source location. Returns the null Ptr if sz is 0 or the
// request cannot be satisfied.
func (h *Heap) Alloc(sz uint64) Ptr {
	file, line := callsite()
	return h.AllocAt(sz, file, line)
}

// Calloc returns zeroed memory for an array of count elements of sz bytes,
// tagged with the caller's source location.
func (h *Heap) Calloc(count, sz uint64) Ptr {
	file, line := callsite()
	return h.CallocAt(count, sz, file, line)
}

// Realloc resizes the allocation at p to hold at least newSize bytes,
// tagged with the caller's source location.
func (h *Heap) Realloc(p Ptr, newSize uint64) Ptr {
	file, line := callsite()
	return h.ReallocAt(p, newSize, file, line)
}

// Free releases the allocation at p, recording the caller's source location
// for any diagnostic. Freeing the null Ptr is a no-op.
func (h *Heap) Free(p Ptr) {
	file, line := callsite()
	h.FreeAt(p, file, line)
}

// AllocAt is Alloc with an explicit source location.
func (h *Heap) AllocAt(sz uint64, file string, line int) Ptr {
	if sz == 0 {
		return 0
	}

	// Detect unsigned integer overflow in the size adjustment.
	if sz > math.MaxUint64-(alignment+allocMetaSize) {
		h.recordFail(sz)
		return 0
	}

	asize := adjustedSize(sz)
	hd := h.findFit(asize)
	if hd == 0 {
		if logHeap {
			fmt.Fprintf(os.Stderr, "[HEAP] no fit for %d bytes (adjusted %d)\n", sz, asize)
		}
		h.recordFail(sz)
		return 0
	}

	h.assertf(!isAlloc(h.data, hd), "placing into an allocated block")
	h.place(hd, asize)
	h.assertf(isAlloc(h.data, hd), "placed block is not allocated")
	h.setAllocMetadata(hd, sz, file, line)
	h.recordMalloc(hd, sz)
	return Ptr(payloadOf(hd))
}

// CallocAt is Calloc with an explicit source location.
func (h *Heap) CallocAt(count, sz uint64, file string, line int) Ptr {
	if count == 0 {
		return 0
	}
	if buf.MulOverflows(count, sz) {
		h.recordFail(sz)
		return 0
	}
	total := count * sz
	p := h.AllocAt(total, file, line)
	if p != 0 {
		clear(h.data[p : uint64(p)+total])
	}
	return p
}

// FreeAt is Free with an explicit source location.
//
// The pointer is validated first: a double free, wild free, overwritten
// guard, or stray interior pointer prints a diagnostic and leaves the heap
// untouched.
func (h *Heap) FreeAt(p Ptr, file string, line int) {
	if p == 0 {
		return
	}
	if !h.validateFree(p, file, line) {
		return
	}

	hd := headerOf(int(p))
	h.assertf(isAlloc(h.data, hd), "freeing a block that is not allocated")
	h.unlink(&h.allocHead, hd)
	requested := reqSize(h.data, hd)
	hd = h.coalesce(hd)
	h.assertf(!isAlloc(h.data, hd), "freed block is still allocated")
	h.validateList(h.freeHead, false, "after free")
	h.validateList(h.allocHead, true, "after free")
	h.recordFree(requested)
}

// Bytes returns the payload of a live allocation as a slice of length equal
// to the requested size. Returns nil for the null Ptr.
func (h *Heap) Bytes(p Ptr) []byte {
	if p == 0 {
		return nil
	}
	hd := headerOf(int(p))
	return h.data[p : uint64(p)+reqSize(h.data, hd)]
}

// internFile returns the intern-table index for a source-file string.
func (h *Heap) internFile(file string) uint64 {
	if idx, ok := h.fileIDs[file]; ok {
		return idx
	}
	idx := uint64(len(h.files))
	h.files = append(h.files, file)
	h.fileIDs[file] = idx
	return idx
}

// fileName resolves an intern-table index back to its string.
func (h *Heap) fileName(idx uint64) string {
	if idx >= uint64(len(h.files)) {
		return "?"
	}
	return h.files[idx]
}

// ptrString renders a Ptr the way the diagnostics print it.
func ptrString(p Ptr) string {
	return fmt.Sprintf("0x%x", uint64(p))
}

// assertf is a contract assertion on the placement and coalescing paths,
// active only when debugHeap is set.
func (h *Heap) assertf(cond bool, msg string) {
	if debugHeap && !cond {
		panic("heap: " + msg)
	}
}

// callsite reports the file and line of the caller's caller.
func callsite() (string, int) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "?", 0
	}
	return file, line
}
