// Package mount adapts the overlay engine to a userspace filesystem
// mount (§4.4). It is the filesystem-bridge side of the system: it owns
// inode identities and attributes, routes read/write callbacks into
// internal/overlay, and translates engine errors into POSIX error
// numbers. The kernel-protocol plumbing itself (request parsing, the
// FUSE_INIT handshake, the transport loop) is github.com/hanwen/go-fuse's
// job, not this package's — exactly the "kernel filesystem-bridge
// plumbing" spec.md §1 calls out of scope.
package mount

import (
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"

	"github.com/remram44/cowblock/internal/cowerr"
	"github.com/remram44/cowblock/internal/overlay"
)

// attrTTL is the attribute/entry cache TTL handed back on every reply.
// The overlay has a single writer and no other mutator, but attributes
// still change on every write (file_size grows), so nothing is cached.
const attrTTL = 0 * time.Second

// Options configures the mount.
type Options struct {
	// Filename is the single entry the root directory exposes, normally
	// the base file's own name (§4.4).
	Filename string
	// AllowOther mirrors go-fuse's fuse.MountOptions field of the same
	// name; off by default, matching the source behavior's
	// DefaultPermissions-only mount options.
	AllowOther bool
	Logger     *zap.SugaredLogger
}

// Mount mounts engine at mountpoint and returns the running fuse.Server.
// Call Wait on the result to block until the filesystem is unmounted.
func Mount(engine *overlay.Engine, mountpoint string, opts Options) (*fuse.Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	root := &rootNode{
		filename: opts.Filename,
		file: &fileNode{
			engine: engine,
			logger: logger,
		},
	}

	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:     "cowblock",
			Name:       "cowblock",
			AllowOther: opts.AllowOther,
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("mounted", "mountpoint", mountpoint, "filename", opts.Filename, "size", engine.FileSize())
	return server, nil
}

// toErrno translates an overlay/cowerr failure into the POSIX error
// number the kernel expects (§7): a generic I/O error for internal
// engine failures, since none of them name a more specific boundary
// condition the kernel would need to distinguish.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return fs.OK
	}
	switch {
	case cowerr.Is(err, cowerr.Corrupted),
		cowerr.Is(err, cowerr.ShortIO),
		cowerr.Is(err, cowerr.BackingIO),
		cowerr.Is(err, cowerr.SyncFailure):
		return syscall.EIO
	default:
		if errno, ok := err.(syscall.Errno); ok {
			return errno
		}
		if pathErr, ok := err.(*os.PathError); ok {
			if errno, ok := pathErr.Err.(syscall.Errno); ok {
				return errno
			}
		}
		return syscall.EIO
	}
}
