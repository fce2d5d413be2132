package sidecar

import (
	"os"
	"testing"

	"github.com/remram44/cowblock/internal/cowerr"
)

func TestNbytesForWidth(t *testing.T) {
	if NbytesFor(0) != Width4 {
		t.Fatal("0 blocks should use 4-byte width")
	}
	if NbytesFor(1<<32-1) != Width4 {
		t.Fatal("2^32-1 blocks should still fit in 4-byte width")
	}
	if NbytesFor(1<<32) != Width8 {
		t.Fatal("2^32 blocks should need 8-byte width")
	}
}

func TestIndexRoundTrip(t *testing.T) {
	l := Layout{BlockSize: 10, Nblocks: 4, Nbytes: Width4}
	f := tempFile(t)
	if err := setupFile(f, l.HeaderSize()); err != nil {
		t.Fatal(err)
	}

	for blockNum := int64(0); blockNum < l.Nblocks; blockNum++ {
		off, ok, err := ReadIndex(f, l, blockNum)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatalf("block %d should start unmapped, got offset %d", blockNum, off)
		}
	}

	slot, err := Allocate(f)
	if err != nil {
		t.Fatal(err)
	}
	if slot != l.HeaderSize() {
		t.Fatalf("first allocation should land at header end, got %d", slot)
	}
	if err := WriteIndex(f, l, 2, slot); err != nil {
		t.Fatal(err)
	}

	off, ok, err := ReadIndex(f, l, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || off != slot {
		t.Fatalf("expected mapped offset %d, got ok=%v off=%d", slot, ok, off)
	}

	// Every other block remains unmapped.
	for _, b := range []int64{0, 1, 3} {
		_, ok, err := ReadIndex(f, l, b)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatalf("block %d should remain unmapped", b)
		}
	}
}

func TestWriteIndexRejectsMisalignedOffset(t *testing.T) {
	l := Layout{BlockSize: 10, Nblocks: 2, Nbytes: Width4}
	f := tempFile(t)
	if err := setupFile(f, l.HeaderSize()); err != nil {
		t.Fatal(err)
	}

	if err := WriteIndex(f, l, 0, l.HeaderSize()+5); err == nil {
		t.Fatal("expected misaligned physical offset to be rejected")
	} else if !cowerr.Is(err, cowerr.Corrupted) {
		t.Fatalf("expected Corrupted error kind, got %v", err)
	}

	if err := WriteIndex(f, l, 0, l.HeaderSize()-l.BlockSize); err == nil {
		t.Fatal("expected offset before the payload region to be rejected")
	}
}

func TestSetupExtendsEmptyDiff(t *testing.T) {
	l := NewLayout(10, 26) // nblocks = 2
	f := tempFile(t)
	if err := Setup(f, l); err != nil {
		t.Fatal(err)
	}
	fi, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != l.HeaderSize() {
		t.Fatalf("expected diff extended to %d bytes, got %d", l.HeaderSize(), fi.Size())
	}
}

func TestSetupRejectsTooSmallDiff(t *testing.T) {
	l := NewLayout(10, 26) // nblocks = 2, header = 8 bytes
	f := tempFile(t)
	if err := setupFile(f, l.HeaderSize()-1); err != nil {
		t.Fatal(err)
	}
	if err := Setup(f, l); err == nil {
		t.Fatal("expected Setup to reject an under-sized preexisting diff")
	} else if !cowerr.Is(err, cowerr.Corrupted) {
		t.Fatalf("expected Corrupted error kind, got %v", err)
	}
}

func TestSetupNoopForEmptyBase(t *testing.T) {
	l := NewLayout(10, 0)
	f := tempFile(t)
	if err := Setup(f, l); err != nil {
		t.Fatal(err)
	}
	fi, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 0 {
		t.Fatalf("expected untouched empty diff, got size %d", fi.Size())
	}
}

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "diff")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func setupFile(f *os.File, size int64) error {
	return f.Truncate(size)
}
