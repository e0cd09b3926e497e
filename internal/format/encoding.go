package format

import "encoding/binary"

// Binary encoding utilities for little-endian words.
//
// Implementation: Uses encoding/binary.LittleEndian
//
// Performance Note: Go's standard library implementation is already highly
// optimized by the compiler. Unsafe pointer implementations provide no
// measurable benefit here and add complexity; modern Go compilers inline
// binary.LittleEndian calls extremely well.

// PutU32 writes a uint32 value to the buffer at the specified offset in little-endian format.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// ReadU32 reads a uint32 value from the buffer at the specified offset in little-endian format.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// PutU64 writes a uint64 value to the buffer at the specified offset in little-endian format.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// ReadU64 reads a uint64 value from the buffer at the specified offset in little-endian format.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}
