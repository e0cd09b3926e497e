package heap

import "sync"

// Process-global façade. The arena and both list heads form one aggregate
// with startup/shutdown semantics; these free functions re-expose a single
// shared instance for callers that want drop-in allocator calls rather than
// an explicit Heap value.

var (
	defaultHeap *Heap
	defaultOnce sync.Once
)

// Default returns the process-wide heap, creating it on first use. Creation
// failure panics: a process that cannot map its arena cannot run.
func Default() *Heap {
	defaultOnce.Do(func() {
		h, err := New()
		if err != nil {
			panic(err)
		}
		defaultHeap = h
	})
	return defaultHeap
}

// Alloc allocates from the process-wide heap.
func Alloc(sz uint64) Ptr {
	file, line := callsite()
	return Default().AllocAt(sz, file, line)
}

// Calloc allocates zeroed memory from the process-wide heap.
func Calloc(count, sz uint64) Ptr {
	file, line := callsite()
	return Default().CallocAt(count, sz, file, line)
}

// Realloc resizes an allocation on the process-wide heap.
func Realloc(p Ptr, newSize uint64) Ptr {
	file, line := callsite()
	return Default().ReallocAt(p, newSize, file, line)
}

// Free releases an allocation on the process-wide heap.
func Free(p Ptr) {
	file, line := callsite()
	Default().FreeAt(p, file, line)
}

// Stats returns the process-wide heap's statistics.
func Stats() Statistics {
	return Default().Stats()
}

// PrintStatistics prints the process-wide heap's statistics.
func PrintStatistics() {
	Default().PrintStatistics()
}

// PrintLeakReport prints the process-wide heap's leak report.
func PrintLeakReport() {
	Default().PrintLeakReport()
}
