package heap

import "fmt"

// Statistics is a snapshot of the allocator's cumulative counters.
//
// HeapMin and HeapMax bracket every payload ever handed out: HeapMin is the
// smallest payload offset, HeapMax the largest payload end. They start at
// MaxUint64 and 0 respectively and are updated only on successful
// allocation.
type Statistics struct {
	NActive    uint64 // number of active allocations
	ActiveSize uint64 // bytes in active allocations
	NFree      uint64 // number of successful frees
	FreedSize  uint64 // bytes successfully freed
	NTotal     uint64 // total allocations
	TotalSize  uint64 // bytes in total allocations
	NFail      uint64 // failed allocation attempts
	FailSize   uint64 // bytes in failed allocation attempts
	HeapMin    uint64 // smallest payload offset handed out
	HeapMax    uint64 // largest payload end handed out
}

// Stats returns the current memory statistics.
func (h *Heap) Stats() Statistics {
	return h.stats
}

// recordMalloc records a successful allocation of sz bytes at hd.
func (h *Heap) recordMalloc(hd int, sz uint64) {
	payload := uint64(payloadOf(hd))

	h.stats.NTotal++
	h.stats.NActive++
	h.stats.ActiveSize += sz
	h.stats.TotalSize += sz

	if payload+sz > h.stats.HeapMax {
		h.stats.HeapMax = payload + sz
	}
	if payload < h.stats.HeapMin {
		h.stats.HeapMin = payload
	}
}

// recordFree records a successful free of sz requested bytes.
func (h *Heap) recordFree(sz uint64) {
	h.stats.NFree++
	h.stats.NActive--
	h.stats.ActiveSize -= sz
	h.stats.FreedSize += sz
}

// recordFail records a failed allocation attempt of sz bytes.
func (h *Heap) recordFail(sz uint64) {
	h.stats.NFail++
	h.stats.FailSize += sz
}

// PrintStatistics writes the current memory statistics to the output writer
// in a fixed two-line format.
func (h *Heap) PrintStatistics() {
	stats := h.Stats()
	fmt.Fprintf(h.out, "alloc count: active %10d   total %10d   fail %10d\n",
		stats.NActive, stats.NTotal, stats.NFail)
	fmt.Fprintf(h.out, "alloc size:  active %10d   total %10d   fail %10d\n",
		stats.ActiveSize, stats.TotalSize, stats.FailSize)
}

// PrintLeakReport writes one line per live allocation to the output writer,
// newest first, with the source location that made it.
func (h *Heap) PrintLeakReport() {
	for hd := h.allocHead; hd != 0; hd = listNext(h.data, hd) {
		fmt.Fprintf(h.out, "LEAK CHECK: %s:%d: allocated object %s with size %d\n",
			h.fileName(fileIndex(h.data, hd)),
			callerLine(h.data, hd),
			ptrString(Ptr(payloadOf(hd))),
			reqSize(h.data, hd))
	}
}
