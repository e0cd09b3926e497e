package heap

import "github.com/joshuapare/guardheap/internal/format"

// Block format.
//
// Every block is a run of 8-byte words bounded by a header word and (except
// for the epilogue) a footer word, each encoding (size | status bits). Block
// sizes are multiples of 16, so the low 4 bits of a size are free for flags.
//
// Allocated blocks additionally reserve the last six words before the footer:
//
//	footer - 1W   forward link (alloc list)
//	footer - 2W   backward link (alloc list)
//	footer - 3W   self-address back-pointer
//	footer - 4W   source-file intern-table index
//	footer - 5W   low 32 bits: caller line, high 32 bits: requested size
//
// and the 8 guard bytes immediately after the requested payload. Free blocks
// carry only header, footer, and the two list links, at the same offsets
// from the footer, so list splicing never cares which state a block is in.
//
// All functions below take header offsets in bytes from the start of the
// arena. This file is the sole site of that arithmetic; everything else in
// the package goes through these accessors.

const (
	wordSize  = format.WordSize
	alignment = format.Alignment

	minPayload    = 2 * wordSize
	allocMetaSize = 8 * wordSize
	minBlock      = allocMetaSize + minPayload

	allocBit     = 0b010
	nextAllocBit = 0b001
	prevAllocBit = 0b100
	flagMask     = allocBit | nextAllocBit | prevAllocBit
)

// magic is the guard sequence written immediately after each payload.
var magic = [8]byte{'k', 'i', 'm', 'b', 'o', 'r', 'a', '!'}

func headerWord(b []byte, hd int) uint64 {
	return format.ReadU64(b, hd)
}

func putHeaderWord(b []byte, hd int, word uint64) {
	format.PutU64(b, hd, word)
}

func blockSize(b []byte, hd int) uint64 {
	return headerWord(b, hd) &^ uint64(flagMask)
}

func blockFlags(b []byte, hd int) uint64 {
	return headerWord(b, hd) & flagMask
}

func isAlloc(b []byte, hd int) bool {
	return headerWord(b, hd)&allocBit != 0
}

func isPrevAlloc(b []byte, hd int) bool {
	return headerWord(b, hd)&prevAllocBit != 0
}

func isNextAlloc(b []byte, hd int) bool {
	return headerWord(b, hd)&nextAllocBit != 0
}

// payloadOf returns the payload offset for a block header.
func payloadOf(hd int) int {
	return hd + wordSize
}

// headerOf returns the block header offset for a payload.
func headerOf(p int) int {
	return p - wordSize
}

// nextBlock returns the header of the physical successor.
func nextBlock(b []byte, hd int) int {
	return hd + int(blockSize(b, hd))
}

// prevBlock returns the header of the physical predecessor by reading the
// size out of its footer, the word immediately before hd. The predecessor
// must carry a footer, which every block except the epilogue does.
func prevBlock(b []byte, hd int) int {
	return hd - int(blockSize(b, hd-wordSize))
}

// footerOf returns the offset of the block's trailing footer word.
// Not meaningful for the zero-sized epilogue.
func footerOf(b []byte, hd int) int {
	return nextBlock(b, hd) - wordSize
}

// setHeaderAndFooter writes (size | flags) into both boundary tags.
func setHeaderAndFooter(b []byte, hd int, size, flags uint64) {
	word := size | flags
	format.PutU64(b, hd, word)
	format.PutU64(b, hd+int(size)-wordSize, word)
}

// toggleNextFlags XORs mask into the physical successor's header.
func toggleNextFlags(b []byte, hd int, mask uint64) {
	next := nextBlock(b, hd)
	format.PutU64(b, next, headerWord(b, next)^mask)
}

// togglePrevFlags XORs mask into the physical predecessor's header.
func togglePrevFlags(b []byte, hd int, mask uint64) {
	prev := prevBlock(b, hd)
	format.PutU64(b, prev, headerWord(b, prev)^mask)
}

// List links. A link holds the header offset of the linked block; 0 means
// end of list (no block header can live at offset 0, the alignment pad word).

func listNext(b []byte, hd int) int {
	return int(format.ReadU64(b, footerOf(b, hd)-wordSize))
}

func listPrev(b []byte, hd int) int {
	return int(format.ReadU64(b, footerOf(b, hd)-2*wordSize))
}

func setListNext(b []byte, hd, to int) {
	format.PutU64(b, footerOf(b, hd)-wordSize, uint64(to))
}

func setListPrev(b []byte, hd, to int) {
	format.PutU64(b, footerOf(b, hd)-2*wordSize, uint64(to))
}

// Allocated metadata slots.

func selfAddr(b []byte, hd int) int {
	return int(format.ReadU64(b, footerOf(b, hd)-3*wordSize))
}

func setSelfAddr(b []byte, hd int) {
	format.PutU64(b, footerOf(b, hd)-3*wordSize, uint64(hd))
}

func fileIndex(b []byte, hd int) uint64 {
	return format.ReadU64(b, footerOf(b, hd)-4*wordSize)
}

func setFileIndex(b []byte, hd int, idx uint64) {
	format.PutU64(b, footerOf(b, hd)-4*wordSize, idx)
}

func callerLine(b []byte, hd int) int {
	return int(uint32(format.ReadU64(b, footerOf(b, hd)-5*wordSize)))
}

func reqSize(b []byte, hd int) uint64 {
	return format.ReadU64(b, footerOf(b, hd)-5*wordSize) >> 32
}

func setLineAndReqSize(b []byte, hd, line int, sz uint64) {
	format.PutU64(b, footerOf(b, hd)-5*wordSize, uint64(uint32(line))|sz<<32)
}

// writeGuard places the magic bytes immediately after the payload.
//
// The guard is written byte-by-byte: the requested size need not be
// word-aligned, and the guard must never be promoted to a word access.
func writeGuard(b []byte, end int) {
	for i := range magic {
		b[end+i] = magic[i]
	}
}

// checkGuard reads the magic bytes back, byte-by-byte for the same reason.
func checkGuard(b []byte, end int) bool {
	if end < 0 || end+len(magic) > len(b) {
		return false
	}
	for i := range magic {
		if b[end+i] != magic[i] {
			return false
		}
	}
	return true
}
