package mount

import (
	"context"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"

	"github.com/remram44/cowblock/internal/overlay"
)

// rootNode is inode 1 (§4.4): a directory whose only non-dot entry is
// the mounted file.
type rootNode struct {
	fs.Inode
	filename string
	file     *fileNode
}

var (
	_ fs.InodeEmbedder  = (*rootNode)(nil)
	_ fs.NodeLookuper   = (*rootNode)(nil)
	_ fs.NodeGetattrer  = (*rootNode)(nil)
	_ fs.NodeReaddirer  = (*rootNode)(nil)
	_ fs.NodeOpendirer  = (*rootNode)(nil)
	_ fs.NodeReadlinker = (*rootNode)(nil)
)

func (n *rootNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0o755
	out.Nlink = 2
	out.Uid = uint32(os.Getuid())
	out.Gid = uint32(os.Getgid())
	out.SetTimeout(attrTTL)
	return fs.OK
}

func (n *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if name != n.filename {
		return nil, syscall.ENOENT
	}
	stable := fs.StableAttr{Mode: fuse.S_IFREG, Ino: 2}
	child := n.NewInode(ctx, n.file, stable)
	n.file.fillAttr(&out.Attr)
	out.SetEntryTimeout(attrTTL)
	out.SetAttrTimeout(attrTTL)
	return child, fs.OK
}

func (n *rootNode) Opendir(ctx context.Context) syscall.Errno {
	return fs.OK
}

func (n *rootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Ino: 1, Mode: fuse.S_IFDIR, Name: "."},
		{Ino: 1, Mode: fuse.S_IFDIR, Name: ".."},
		{Ino: 2, Mode: fuse.S_IFREG, Name: n.filename},
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (n *rootNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	return nil, syscall.EINVAL
}

// fileNode is inode 2 (§4.4): the single virtual file, backed by the
// overlay engine.
type fileNode struct {
	fs.Inode
	engine *overlay.Engine
	logger *zap.SugaredLogger
}

var (
	_ fs.InodeEmbedder  = (*fileNode)(nil)
	_ fs.NodeGetattrer  = (*fileNode)(nil)
	_ fs.NodeOpener     = (*fileNode)(nil)
	_ fs.NodeReader     = (*fileNode)(nil)
	_ fs.NodeWriter     = (*fileNode)(nil)
	_ fs.NodeFlusher    = (*fileNode)(nil)
	_ fs.NodeFsyncer    = (*fileNode)(nil)
	_ fs.NodeReadlinker = (*fileNode)(nil)
)

func (n *fileNode) fillAttr(out *fuse.Attr) {
	size := uint64(n.engine.FileSize())
	out.Mode = fuse.S_IFREG | 0o755
	out.Nlink = 2
	out.Uid = uint32(os.Getuid())
	out.Gid = uint32(os.Getgid())
	out.Size = size
	out.Blocks = (size + 511) / 512
	out.Blksize = 512
}

func (n *fileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fillAttr(&out.Attr)
	out.SetTimeout(attrTTL)
	return fs.OK
}

// Open accepts any flags and returns a no-op handle (§4.4): all engine
// state is owned by the overlay.Engine, not by a per-open handle.
func (n *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, 0, fs.OK
}

func (n *fileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.engine.Read(off, int64(len(dest)))
	if err != nil {
		n.logger.Errorw("read failed", "offset", off, "size", len(dest), "error", err)
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(data), fs.OK
}

func (n *fileNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	written, err := n.engine.Write(off, data)
	if err != nil {
		n.logger.Errorw("write failed", "offset", off, "size", len(data), "error", err)
		return 0, toErrno(err)
	}
	return uint32(written), fs.OK
}

func (n *fileNode) Flush(ctx context.Context, f fs.FileHandle) syscall.Errno {
	if err := n.engine.Flush(); err != nil {
		n.logger.Errorw("flush failed", "error", err)
		return toErrno(err)
	}
	return fs.OK
}

func (n *fileNode) Fsync(ctx context.Context, f fs.FileHandle, flags uint32) syscall.Errno {
	const datasyncFlag = 1
	if err := n.engine.Fsync(flags&datasyncFlag != 0); err != nil {
		n.logger.Errorw("fsync failed", "error", err)
		return toErrno(err)
	}
	return fs.OK
}

func (n *fileNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	return nil, syscall.EINVAL
}
