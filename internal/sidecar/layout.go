// Package sidecar implements the diff sidecar's fixed-width indirection
// table: the header codec and the setup/allocation logic that §4.2 of the
// design specifies. It knows nothing about the extra sidecar or the base
// file's content beyond their sizes; the overlay engine (internal/overlay)
// composes this with actual block reads and writes.
package sidecar

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/remram44/cowblock/internal/cowerr"
)

// Layout describes the fixed geometry of a diff sidecar for one mount:
// the block size, the number of full base blocks it indexes, and the
// width of each index entry.
type Layout struct {
	BlockSize int64
	Nblocks   int64
	Nbytes    int64
}

// HeaderSize is the size in bytes of the index header at the head of the
// diff sidecar.
func (l Layout) HeaderSize() int64 {
	return l.Nbytes * l.Nblocks
}

// SlotOffset returns the physical offset of the zero-based payload slot i
// (the i-th block-sized region appended after the header).
func (l Layout) SlotOffset(i int64) int64 {
	return l.HeaderSize() + i*l.BlockSize
}

// NewLayout computes the Layout for a base of baseSize bytes at the given
// blockSize. blockSize must be >= 4 (overlay.Open enforces this minimum;
// this constructor does not re-validate it).
func NewLayout(blockSize, baseSize int64) Layout {
	nblocks := baseSize / blockSize
	return Layout{
		BlockSize: blockSize,
		Nblocks:   nblocks,
		Nbytes:    NbytesFor(nblocks),
	}
}

// Setup prepares diff for use under l: if diff is empty it is extended to
// exactly the header size (zero-filled, meaning "every block unmapped");
// if it already has content, its length must be at least the header size
// or Setup reports a Corrupted error.
//
// Setup is a no-op when l.Nblocks == 0 (an empty base has no header to
// allocate).
func Setup(diff *os.File, l Layout) error {
	if l.Nblocks == 0 {
		return nil
	}

	size, err := diff.Seek(0, io.SeekEnd)
	if err != nil {
		return cowerr.New(cowerr.BackingIO, "sidecar.Setup: seek diff", err)
	}

	want := l.HeaderSize()
	switch {
	case size == 0:
		if err := diff.Truncate(want); err != nil {
			return cowerr.New(cowerr.BackingIO, "sidecar.Setup: extend diff header", err)
		}
	case size < want:
		return cowerr.New(cowerr.Corrupted, "sidecar.Setup",
			errors.Errorf("diff sidecar is %d bytes, need at least %d for the index header", size, want))
	}
	return nil
}

// ReadIndex returns the physical offset of blockNum's overwritten copy,
// and ok=false if blockNum is not yet mapped ("read from base").
func ReadIndex(diff io.ReaderAt, l Layout, blockNum int64) (physicalOffset int64, ok bool, err error) {
	buf := make([]byte, l.Nbytes)
	if _, err := diff.ReadAt(buf, blockNum*l.Nbytes); err != nil {
		return 0, false, cowerr.New(cowerr.ShortIO, "sidecar.ReadIndex", err)
	}

	ordinal := decodeOrdinal(buf, l.Nbytes)
	if ordinal == 0 {
		return 0, false, nil
	}
	return l.SlotOffset(int64(ordinal - 1)), true, nil
}

// WriteIndex records that blockNum's overwritten copy now lives at
// physicalOffset, which must be a block-aligned slot position at or past
// the header.
func WriteIndex(diff io.WriterAt, l Layout, blockNum, physicalOffset int64) error {
	base := physicalOffset - l.HeaderSize()
	if base < 0 || base%l.BlockSize != 0 {
		return cowerr.New(cowerr.Corrupted, "sidecar.WriteIndex",
			errors.Errorf("physical offset %d is not a valid payload slot for layout %+v", physicalOffset, l))
	}

	ordinal := uint64(base/l.BlockSize) + 1
	if ordinal > maxOrdinal(l.Nbytes) {
		return cowerr.New(cowerr.Corrupted, "sidecar.WriteIndex",
			errors.Errorf("ordinal %d overflows %d-byte index width", ordinal, l.Nbytes))
	}

	buf := make([]byte, l.Nbytes)
	encodeOrdinal(buf, ordinal, l.Nbytes)
	if _, err := diff.WriteAt(buf, blockNum*l.Nbytes); err != nil {
		return cowerr.New(cowerr.BackingIO, "sidecar.WriteIndex", err)
	}
	return nil
}

// Allocate returns the physical offset of the next payload slot: the
// current end of diff. It does not extend diff itself; the slot comes into
// existence when the caller, after committing the corresponding
// WriteIndex, writes the payload at that offset.
func Allocate(diff *os.File) (physicalOffset int64, err error) {
	off, err := diff.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, cowerr.New(cowerr.BackingIO, "sidecar.Allocate: seek diff", err)
	}
	return off, nil
}
