package sidecar

import "encoding/binary"

// Width4 selects a 4-byte index entry (nblocks < 2^32).
// Width8 selects an 8-byte index entry, for bases with 2^32 or more blocks.
const (
	Width4 = 4
	Width8 = 8
)

// NbytesFor returns the index-entry width for a base with nblocks full
// blocks: 4 bytes while it fits in a uint32 ordinal, 8 bytes otherwise.
func NbytesFor(nblocks int64) int64 {
	if nblocks < 1<<32 {
		return Width4
	}
	return Width8
}

// encodeOrdinal writes the one-based diff-slot ordinal k into dst, which
// must be exactly nbytes long.
func encodeOrdinal(dst []byte, k uint64, nbytes int64) {
	switch nbytes {
	case Width4:
		binary.BigEndian.PutUint32(dst, uint32(k))
	case Width8:
		binary.BigEndian.PutUint64(dst, k)
	default:
		panic("sidecar: invalid index width")
	}
}

// decodeOrdinal reads the one-based diff-slot ordinal out of src, which
// must be exactly nbytes long.
func decodeOrdinal(src []byte, nbytes int64) uint64 {
	switch nbytes {
	case Width4:
		return uint64(binary.BigEndian.Uint32(src))
	case Width8:
		return binary.BigEndian.Uint64(src)
	default:
		panic("sidecar: invalid index width")
	}
}

// maxOrdinal is the largest one-based ordinal that fits in nbytes.
func maxOrdinal(nbytes int64) uint64 {
	switch nbytes {
	case Width4:
		return 1<<32 - 1
	case Width8:
		return 1<<64 - 1
	default:
		panic("sidecar: invalid index width")
	}
}
