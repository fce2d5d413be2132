// Package overlay implements the copy-on-write block overlay engine:
// §4.3 of the design. It owns the three backing files for one mounted
// virtual file and translates absolute-offset reads and writes into base,
// diff, and extra accesses via the block iterator and the sidecar index.
package overlay

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/remram44/cowblock/internal/cowerr"
	"github.com/remram44/cowblock/internal/sidecar"
)

// MinBlockSize is the smallest block size the engine accepts (§6 CLI).
const MinBlockSize = 4

// Engine is a single mounted virtual file's copy-on-write state: the
// three backing file handles and the header-derived scalars §5 says the
// engine owns exclusively for the duration of each call. It is not safe
// for concurrent use; the filesystem bridge must serialize calls into it
// (§5 Concurrency & Resource Model).
type Engine struct {
	base  *os.File
	diff  *os.File
	extra *os.File

	layout   sidecar.Layout
	fileSize int64
}

// Open opens the base, diff, and extra files at the given paths and
// prepares the engine per §4.2 Setup. The base is opened read-only and is
// never written by the engine. diff and extra are created if absent.
func Open(basePath, diffPath, extraPath string, blockSize int64) (*Engine, error) {
	if blockSize < MinBlockSize {
		return nil, errors.Errorf("block size %d is below the minimum of %d", blockSize, MinBlockSize)
	}

	base, err := os.OpenFile(basePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "overlay.Open: base")
	}

	diff, err := os.OpenFile(diffPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		base.Close()
		return nil, errors.Wrap(err, "overlay.Open: diff")
	}

	extra, err := os.OpenFile(extraPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		base.Close()
		diff.Close()
		return nil, errors.Wrap(err, "overlay.Open: extra")
	}

	e, err := New(base, diff, extra, blockSize)
	if err != nil {
		base.Close()
		diff.Close()
		extra.Close()
		return nil, err
	}
	return e, nil
}

// New wires up an Engine from already-open backing files and runs setup
// (§4.2): sizing the index header, and seeding extra with the base's
// trailing partial block on first use.
func New(base, diff, extra *os.File, blockSize int64) (*Engine, error) {
	baseInfo, err := base.Stat()
	if err != nil {
		return nil, cowerr.New(cowerr.BackingIO, "overlay.New: stat base", err)
	}
	baseSize := baseInfo.Size()

	layout := sidecar.NewLayout(blockSize, baseSize)
	if err := sidecar.Setup(diff, layout); err != nil {
		return nil, err
	}

	extraInfo, err := extra.Stat()
	if err != nil {
		return nil, cowerr.New(cowerr.BackingIO, "overlay.New: stat extra", err)
	}
	extraSize := extraInfo.Size()

	trailing := baseSize % blockSize
	if trailing != 0 && extraSize == 0 {
		buf := make([]byte, trailing)
		if _, err := io.ReadFull(io.NewSectionReader(base, layout.Nblocks*blockSize, trailing), buf); err != nil {
			return nil, cowerr.New(cowerr.ShortIO, "overlay.New: seed trailing base block", err)
		}
		if _, err := extra.WriteAt(buf, 0); err != nil {
			return nil, cowerr.New(cowerr.BackingIO, "overlay.New: seed extra", err)
		}
		extraSize = trailing
	}

	return &Engine{
		base:     base,
		diff:     diff,
		extra:    extra,
		layout:   layout,
		fileSize: layout.Nblocks*blockSize + extraSize,
	}, nil
}

// FileSize returns the virtual file's current length.
func (e *Engine) FileSize() int64 { return e.fileSize }

// BlockSize returns the configured block size.
func (e *Engine) BlockSize() int64 { return e.layout.BlockSize }

// Close releases the three backing file handles.
func (e *Engine) Close() error {
	var errs []error
	if err := e.base.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.diff.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.extra.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (e *Engine) pastBaseOffset() int64 {
	return e.layout.Nblocks * e.layout.BlockSize
}

// exactReadAt reads exactly len(buf) bytes from f at off, surfacing a
// short read as a ShortIO error (§4.3.1 "reads are exact").
func exactReadAt(f *os.File, buf []byte, off int64, op string) error {
	if _, err := f.ReadAt(buf, off); err != nil {
		return cowerr.New(cowerr.ShortIO, op, err)
	}
	return nil
}
