package overlay

import (
	"github.com/remram44/cowblock/internal/blockiter"
	"github.com/remram44/cowblock/internal/cowerr"
	"github.com/remram44/cowblock/internal/sidecar"
)

// Write stores data at absolute offset start, honoring partial-block
// read-modify-write and past-EOF extension (§4.3.2), and returns
// len(data) once every byte has been accepted.
func (e *Engine) Write(start int64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	it := blockiter.New(e.layout.BlockSize, start, int64(len(data)))
	for {
		b, ok := it.Next()
		if !ok {
			break
		}

		if b.Num >= e.layout.Nblocks {
			if err := e.writePastBase(b, data); err != nil {
				return 0, err
			}
			break
		}

		src := data[b.BufferOffset : b.BufferOffset+b.Size()]
		if err := e.writeWithinBase(b, src); err != nil {
			return 0, err
		}
	}

	return len(data), nil
}

// writePastBase implements Case A: everything from block b onward goes
// to extra in a single coalesced write, with any gap past the current
// file size materialized as zero bytes.
func (e *Engine) writePastBase(b blockiter.Block, data []byte) error {
	extraOff := b.Start - e.pastBaseOffset()

	if b.Start > e.fileSize {
		gapLen := b.Start - e.fileSize
		gapOff := e.fileSize - e.pastBaseOffset()
		if err := e.zeroFillExtra(gapOff, gapLen); err != nil {
			return err
		}
	}

	remaining := data[b.BufferOffset:]
	if _, err := e.extra.WriteAt(remaining, extraOff); err != nil {
		return cowerr.New(cowerr.BackingIO, "overlay.Write: extra", err)
	}

	newSize := b.Start + int64(len(remaining))
	if newSize > e.fileSize {
		e.fileSize = newSize
	}
	return nil
}

func (e *Engine) zeroFillExtra(off, n int64) error {
	const chunk = 64 * 1024
	zeros := make([]byte, chunk)
	for n > 0 {
		w := n
		if w > chunk {
			w = chunk
		}
		if _, err := e.extra.WriteAt(zeros[:w], off); err != nil {
			return cowerr.New(cowerr.BackingIO, "overlay.Write: zero-fill gap", err)
		}
		off += w
		n -= w
	}
	return nil
}

// writeWithinBase implements Cases B and C: an in-place overwrite of an
// already-allocated diff slot, or allocation plus (for partial blocks) a
// read-modify-write composing the new bytes into the full base block.
func (e *Engine) writeWithinBase(b blockiter.Block, src []byte) error {
	physical, mapped, err := sidecar.ReadIndex(e.diff, e.layout, b.Num)
	if err != nil {
		return err
	}

	if mapped {
		off := physical + b.Start%e.layout.BlockSize
		if _, err := e.diff.WriteAt(src, off); err != nil {
			return cowerr.New(cowerr.BackingIO, "overlay.Write: diff", err)
		}
		return nil
	}

	slot, err := sidecar.Allocate(e.diff)
	if err != nil {
		return err
	}
	if err := sidecar.WriteIndex(e.diff, e.layout, b.Num, slot); err != nil {
		return err
	}

	if int64(len(src)) == e.layout.BlockSize {
		if _, err := e.diff.WriteAt(src, slot); err != nil {
			return cowerr.New(cowerr.BackingIO, "overlay.Write: diff payload", err)
		}
		return nil
	}

	blockStart := b.Num * e.layout.BlockSize
	full := make([]byte, e.layout.BlockSize)
	if err := exactReadAt(e.base, full, blockStart, "overlay.Write: base RMW read"); err != nil {
		return err
	}
	spliceStart := b.Start - blockStart
	copy(full[spliceStart:spliceStart+int64(len(src))], src)

	if _, err := e.diff.WriteAt(full, slot); err != nil {
		return cowerr.New(cowerr.BackingIO, "overlay.Write: diff payload", err)
	}
	return nil
}
