package heap

// The free and alloc lists are doubly linked and LIFO, threaded through the
// link slots each block keeps just before its footer. Because the slots sit
// at the same offsets in both block states, the splicing below never cares
// whether it is touching a free or an allocated block; only the head pointer
// passed in decides which list is being edited.

// pushFront pushes the block at hd onto the front of the list owned by head.
func (h *Heap) pushFront(head *int, hd int) {
	h.assertf(hd != *head, "double push onto list head")
	if debugHeap {
		if head == &h.freeHead {
			h.assertf(!isAlloc(h.data, hd), "allocated block pushed on free list")
		} else {
			h.assertf(isAlloc(h.data, hd), "free block pushed on alloc list")
		}
	}

	front := *head
	if front == 0 {
		setListNext(h.data, hd, 0)
	} else {
		setListNext(h.data, hd, front)
		setListPrev(h.data, front, hd)
	}
	setListPrev(h.data, hd, 0)
	*head = hd
}

// unlink removes the block at hd from the list owned by head by connecting
// its neighbors to each other.
func (h *Heap) unlink(head *int, hd int) {
	prev := listPrev(h.data, hd)
	next := listNext(h.data, hd)

	switch {
	case prev == 0 && next != 0: // block was start of list
		setListPrev(h.data, next, 0)
		*head = next
	case prev != 0 && next == 0: // block was end of list
		setListNext(h.data, prev, 0)
	case prev == 0 && next == 0: // block was the only member
		*head = 0
	default:
		setListNext(h.data, prev, next)
		setListPrev(h.data, next, prev)
	}
}

// validateList walks a list and panics on a membership violation or a
// self-referential link. Debug builds only.
func (h *Heap) validateList(head int, wantAlloc bool, msg string) {
	if !debugHeap {
		return
	}
	for hd := head; hd != 0; hd = listNext(h.data, hd) {
		if isAlloc(h.data, hd) != wantAlloc {
			panic("heap: list member has wrong state: " + msg)
		}
		if listNext(h.data, hd) == hd || listPrev(h.data, hd) == hd {
			panic("heap: list member points to itself: " + msg)
		}
	}
}
