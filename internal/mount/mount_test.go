package mount

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remram44/cowblock/internal/cowerr"
	"github.com/remram44/cowblock/internal/overlay"
)

func TestToErrnoNil(t *testing.T) {
	assert.Equal(t, fs.OK, toErrno(nil))
}

func TestToErrnoCowerrKinds(t *testing.T) {
	kinds := []cowerr.Kind{cowerr.Corrupted, cowerr.ShortIO, cowerr.BackingIO, cowerr.SyncFailure}
	for _, k := range kinds {
		err := cowerr.New(k, "read", nil)
		assert.Equal(t, syscall.EIO, toErrno(err), "kind %s", k)
	}
}

func TestToErrnoPassesThroughErrno(t *testing.T) {
	assert.Equal(t, syscall.ENOSPC, toErrno(syscall.ENOSPC))
}

func TestToErrnoUnwrapsPathError(t *testing.T) {
	pathErr := &os.PathError{Op: "open", Path: "/tmp/x", Err: syscall.ENOENT}
	assert.Equal(t, syscall.ENOENT, toErrno(pathErr))
}

func TestToErrnoFallsBackToEIO(t *testing.T) {
	assert.Equal(t, syscall.EIO, toErrno(errPlain("boom")))
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

func newTestFileNode(t *testing.T) *fileNode {
	t.Helper()
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base")
	require.NoError(t, os.WriteFile(basePath, []byte("hello world"), 0o644))

	e, err := overlay.Open(basePath, filepath.Join(dir, "diff"), filepath.Join(dir, "extra"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	return &fileNode{engine: e, logger: zap.NewNop().Sugar()}
}

func TestFileNodeFillAttrReportsEngineSize(t *testing.T) {
	n := newTestFileNode(t)
	var attr fuse.Attr
	n.fillAttr(&attr)
	assert.EqualValues(t, 11, attr.Size)
	assert.Equal(t, uint32(fuse.S_IFREG|0o755), attr.Mode)
}

func TestFileNodeReadWriteRoundTrip(t *testing.T) {
	n := newTestFileNode(t)
	ctx := context.Background()

	written, errno := n.Write(ctx, nil, []byte("HELL"), 0)
	require.Equal(t, fs.OK, errno)
	assert.EqualValues(t, 4, written)

	result, errno := n.Read(ctx, nil, make([]byte, 5), 0)
	require.Equal(t, fs.OK, errno)
	buf, status := result.Bytes(make([]byte, 5))
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, []byte("HELLo"), buf)
}

func TestFileNodeFlushAndFsync(t *testing.T) {
	n := newTestFileNode(t)
	ctx := context.Background()
	assert.Equal(t, fs.OK, n.Flush(ctx, nil))
	assert.Equal(t, fs.OK, n.Fsync(ctx, nil, 0))
}

func TestFileNodeReadlinkRejected(t *testing.T) {
	n := newTestFileNode(t)
	_, errno := n.Readlink(context.Background())
	assert.Equal(t, syscall.EINVAL, errno)
}

// Readdir only builds a static fuse.DirEntry list via fs.NewListDirStream
// and touches no Inode tree state, so it is safe to exercise without a
// live fs.Mount. Lookup (which calls n.NewInode, requiring a mounted
// Inode tree) is left to manual/integration testing.
func TestRootNodeReaddir(t *testing.T) {
	n := newTestFileNode(t)
	root := &rootNode{filename: "base", file: n}

	stream, errno := root.Readdir(context.Background())
	require.Equal(t, fs.OK, errno)
	var names []string
	for stream.HasNext() {
		entry, errno := stream.Next()
		require.Equal(t, fs.OK, errno)
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{".", "..", "base"}, names)
}

func TestRootNodeGetattr(t *testing.T) {
	root := &rootNode{filename: "base"}
	var out fuse.AttrOut
	errno := root.Getattr(context.Background(), nil, &out)
	require.Equal(t, fs.OK, errno)
	assert.Equal(t, uint32(fuse.S_IFDIR|0o755), out.Mode)
	assert.EqualValues(t, 2, out.Nlink)
}
