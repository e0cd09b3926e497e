package heap

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Developer-only dump routines. These read the heap but never mutate it.

// DumpHeap prints every block in arena order, prologue and epilogue
// excluded, followed by a totals line.
func (h *Heap) DumpHeap(w io.Writer) {
	fmt.Fprintln(w, "================================================")
	count := 0
	var freeBytes, allocBytes uint64
	for hd := nextBlock(h.data, h.top); ; hd = nextBlock(h.data, hd) {
		size := blockSize(h.data, hd)
		if size == 0 && isAlloc(h.data, hd) {
			break
		}
		state := "FREE"
		if isAlloc(h.data, hd) {
			state = "ALLOC"
			allocBytes += size
		} else {
			freeBytes += size
		}
		fmt.Fprintf(w, "block %d: %s\nheader: 0x%x footer: 0x%x\nsize: %d\nprev: %s\nnext: %s\n----------\n",
			count, state, hd, footerOf(h.data, hd), size,
			stateName(isPrevAlloc(h.data, hd)), stateName(isNextAlloc(h.data, hd)))
		count++
	}
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%d blocks, %d bytes allocated, %d bytes free\n",
		count, allocBytes, freeBytes)
	fmt.Fprintln(w, "================================================")
}

// DumpFreeList prints every block on the free list, head first.
func (h *Heap) DumpFreeList(w io.Writer) {
	h.dumpList(w, h.freeHead, "FREE")
}

// DumpAllocList prints every block on the alloc list, head first.
func (h *Heap) DumpAllocList(w io.Writer) {
	h.dumpList(w, h.allocHead, "ALLOC")
}

func (h *Heap) dumpList(w io.Writer, head int, title string) {
	fmt.Fprintf(w, "====================%s LIST=====================\n", title)
	count := 0
	for hd := head; hd != 0; hd = listNext(h.data, hd) {
		fmt.Fprintf(w, "block %d: %s\nheader: 0x%x footer: 0x%x\nsize: %d\nlist_prev: 0x%x\nlist_next: 0x%x\n----------\n",
			count, stateName(isAlloc(h.data, hd)), hd, footerOf(h.data, hd),
			blockSize(h.data, hd), listPrev(h.data, hd), listNext(h.data, hd))
		count++
		if count > 50 {
			fmt.Fprintln(w, "... (truncated)")
			break
		}
	}
	fmt.Fprintf(w, "=======================%s LIST==================\n", title)
}

func stateName(alloc bool) string {
	if alloc {
		return "ALLOC"
	}
	return "FREE"
}
