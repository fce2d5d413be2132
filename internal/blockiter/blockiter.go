// Package blockiter tiles a byte range into block_size-aligned slices.
package blockiter

// Block is one slice of a larger [start, start+size) range, aligned so that
// it never crosses a block boundary.
type Block struct {
	// Start and End are absolute offsets into the virtual file.
	Start, End int64
	// Num is the zero-based index of the block this slice belongs to.
	Num int64
	// BufferOffset is the position of this slice's first byte within the
	// caller's contiguous buffer, i.e. the sum of the sizes of all prior
	// slices yielded by the same Iterator.
	BufferOffset int64
}

// Size returns the number of bytes this slice covers.
func (b Block) Size() int64 {
	return b.End - b.Start
}

// Iterator yields the Blocks that tile [start, start+size) along
// blockSize-aligned boundaries, in increasing offset order.
type Iterator struct {
	blockSize    int64
	start, end   int64
	bufferOffset int64
}

// New returns an Iterator over [start, start+size) for the given blockSize.
func New(blockSize, start, size int64) *Iterator {
	return &Iterator{
		blockSize: blockSize,
		start:     start,
		end:       start + size,
	}
}

// Next returns the next Block, or false once the range is exhausted.
func (it *Iterator) Next() (Block, bool) {
	if it.start >= it.end {
		return Block{}, false
	}

	num := it.start / it.blockSize
	end := (num + 1) * it.blockSize
	if end > it.end {
		end = it.end
	}

	b := Block{
		Start:        it.start,
		End:          end,
		Num:          num,
		BufferOffset: it.bufferOffset,
	}

	it.bufferOffset += end - it.start
	it.start = end

	return b, true
}

// Collect drains the Iterator into a slice. Mainly useful for tests.
func Collect(it *Iterator) []Block {
	var blocks []Block
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		blocks = append(blocks, b)
	}
	return blocks
}
