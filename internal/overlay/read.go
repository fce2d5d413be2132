package overlay

import (
	"github.com/remram44/cowblock/internal/blockiter"
	"github.com/remram44/cowblock/internal/sidecar"
)

// Read returns min(size, FileSize()-start) bytes starting at start, zero
// if start is at or past FileSize() (§4.3.1). Every backing read is
// exact; a short read from any backing file surfaces as a ShortIO error.
func (e *Engine) Read(start, size int64) ([]byte, error) {
	if start >= e.fileSize {
		return nil, nil
	}
	if size > e.fileSize-start {
		size = e.fileSize - start
	}
	if size <= 0 {
		return nil, nil
	}

	out := make([]byte, size)
	it := blockiter.New(e.layout.BlockSize, start, size)
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		dst := out[b.BufferOffset : b.BufferOffset+b.Size()]

		if b.Num >= e.layout.Nblocks {
			extraOff := b.Start - e.pastBaseOffset()
			if err := exactReadAt(e.extra, dst, extraOff, "overlay.Read: extra"); err != nil {
				return nil, err
			}
			continue
		}

		physical, mapped, err := sidecar.ReadIndex(e.diff, e.layout, b.Num)
		if err != nil {
			return nil, err
		}
		if !mapped {
			if err := exactReadAt(e.base, dst, b.Start, "overlay.Read: base"); err != nil {
				return nil, err
			}
			continue
		}

		diffOff := physical + b.Start%e.layout.BlockSize
		if err := exactReadAt(e.diff, dst, diffOff, "overlay.Read: diff"); err != nil {
			return nil, err
		}
	}
	return out, nil
}
