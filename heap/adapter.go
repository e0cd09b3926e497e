package heap

import "unsafe"

// Allocator is the byte-slice allocator concept: Allocate hands out a slice,
// Reallocate resizes it, Free returns it. The Heap adapter below lets
// slice-oriented code draw from the debugging arena; allocations made this
// way are tagged with the synthetic location "?":0.
type Allocator interface {
	Allocate(size int) []byte
	Reallocate(size int, b []byte) []byte
	Free(b []byte)
}

// adapterFile is the synthetic source location for adapter allocations.
const adapterFile = "?"

type arenaAllocator struct {
	h *Heap
}

// Allocator returns an Allocator view of the heap. The returned value shares
// the heap's single-threaded contract.
func (h *Heap) Allocator() Allocator {
	return &arenaAllocator{h: h}
}

func (a *arenaAllocator) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}
	p := a.h.AllocAt(uint64(size), adapterFile, 0)
	if p == 0 {
		return nil
	}
	return a.h.Bytes(p)
}

func (a *arenaAllocator) Reallocate(size int, b []byte) []byte {
	if b == nil {
		return a.Allocate(size)
	}
	p, ok := a.h.offsetOf(b)
	if !ok {
		return nil
	}
	if size <= 0 {
		return nil
	}
	np := a.h.ReallocAt(p, uint64(size), adapterFile, 0)
	if np == 0 {
		return nil
	}
	return a.h.Bytes(np)
}

func (a *arenaAllocator) Free(b []byte) {
	if b == nil {
		return
	}
	if p, ok := a.h.offsetOf(b); ok {
		a.h.FreeAt(p, adapterFile, 0)
	}
}

// offsetOf recovers the Ptr for a payload slice by pointer subtraction
// against the arena base. This is the package's only unsafe operation; it
// reads no memory, it only compares addresses.
func (h *Heap) offsetOf(b []byte) (Ptr, bool) {
	if len(h.data) == 0 || len(b) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(h.data)))
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if addr < base || addr >= base+uintptr(len(h.data)) {
		return 0, false
	}
	return Ptr(addr - base), true
}
