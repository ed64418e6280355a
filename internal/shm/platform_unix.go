//go:build unix

package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
)

// Dir returns the directory holding shared memory objects.
func Dir() string {
	if runtime.GOOS == "linux" {
		return "/dev/shm"
	}
	return os.TempDir()
}

// Path returns the filesystem path of the named region.
func Path(name string) string {
	return filepath.Join(Dir(), name)
}

// maxMapAttempts bounds how often MapRegion starts over when a concurrent
// creator links the object first or its last holder removes it mid-open.
const maxMapAttempts = 8

var tmpSeq atomic.Uint64

// MapRegion maps or creates a shared memory region (unix implementation).
//
// Every mapping holds a shared flock on its descriptor for as long as it is
// open; ReleaseRegion uses it to find the last holder across processes. A new
// object is sized under a private name and linked into place, so an opener
// never observes it before it has its final length.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(opts.Name); err != nil {
		return nil, err
	}
	if opts.Size < 0 {
		return nil, fmt.Errorf("negative size %d: %w", opts.Size, ErrSizeMismatch)
	}
	if opts.Create && opts.Size == 0 {
		return nil, fmt.Errorf("create %s without size: %w", opts.Name, ErrSizeMismatch)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), maxMapAttempts-1), ctx)
	return backoff.RetryWithData(func() (*MappedRegion, error) {
		fd, size, err := openRegion(opts.Name)
		switch {
		case err == nil:
			return permanent(mapExisting(fd, size, opts))
		case !errors.Is(err, unix.ENOENT) || !opts.Create:
			return nil, backoff.Permanent(err)
		}
		fd, err = createRegion(opts.Name, opts.Size)
		switch {
		case err == nil:
			return permanent(mapFd(fd, opts.Name, opts.Size, true))
		case errors.Is(err, unix.EEXIST):
			// another creator linked first; open its object
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}, policy)
}

func permanent(r *MappedRegion, err error) (*MappedRegion, error) {
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return r, nil
}

// openRegion opens the named object and takes a shared lock on it. It reports
// ENOENT when the object is missing or was removed while the lock was pending.
func openRegion(name string) (int, int64, error) {
	shmPath := Path(name)
	fd, err := unix.Open(shmPath, unix.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return -1, 0, fmt.Errorf("open: %w", err)
	}
	if err := unix.Flock(fd, unix.LOCK_SH); err != nil {
		_ = unix.Close(fd)
		return -1, 0, fmt.Errorf("flock: %w", err)
	}
	var st, cur unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return -1, 0, fmt.Errorf("fstat: %w", err)
	}
	if err := unix.Stat(shmPath, &cur); err != nil || cur.Dev != st.Dev || cur.Ino != st.Ino {
		_ = unix.Close(fd)
		return -1, 0, fmt.Errorf("open %s: removed by its last holder: %w", name, unix.ENOENT)
	}
	return fd, st.Size, nil
}

// createRegion sizes a new object under a private name, locks it and links it
// to its public name. It reports EEXIST when another creator won.
func createRegion(name string, size int) (int, error) {
	if err := CheckCapacity(uint64(size)); err != nil {
		return -1, fmt.Errorf("path:%s size:%d: %w", Path(name), size, err)
	}
	tmp := Path(fmt.Sprintf(".%s.%d.%d", name, os.Getpid(), tmpSeq.Add(1)))
	fd, err := unix.Open(tmp, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0600)
	if err != nil {
		return -1, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = unix.Unlink(tmp) }()

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("ftruncate: %w", err)
	}
	if err := unix.Flock(fd, unix.LOCK_SH); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("flock: %w", err)
	}
	if err := unix.Link(tmp, Path(name)); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("link: %w", err)
	}
	return fd, nil
}

func mapExisting(fd int, actual int64, opts MapOptions) (*MappedRegion, error) {
	size := opts.Size
	switch {
	case size == 0:
		size = int(actual)
	case int64(size) != actual:
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%s has %d bytes, want %d: %w", opts.Name, actual, size, ErrSizeMismatch)
	}
	if size == 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%s is empty: %w", opts.Name, ErrSizeMismatch)
	}
	return mapFd(fd, opts.Name, size, false)
}

func mapFd(fd int, name string, size int, created bool) (*MappedRegion, error) {
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		if created {
			_ = removeIfLast(fd, name)
		}
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &MappedRegion{
		Addr:    addr,
		Name:    name,
		Created: created,
		handle:  uintptr(fd),
	}, nil
}

// removeIfLast unlinks the object when no other descriptor holds its lock.
// A failed upgrade drops the caller's shared lock, so fd must be closing.
func removeIfLast(fd int, name string) bool {
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return false
	}
	if err := unix.Unlink(Path(name)); err != nil && !errors.Is(err, unix.ENOENT) {
		return false
	}
	return true
}

// UnmapRegion unmaps the shared memory region and closes its descriptor (unix implementation).
// The object is left in place for other holders.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var errs []error
	if err := unix.Munmap(region.Addr); err != nil {
		errs = append(errs, fmt.Errorf("munmap: %w", err))
	}
	if err := unix.Close(int(region.handle)); err != nil {
		errs = append(errs, fmt.Errorf("close fd %d: %w", int(region.handle), err))
	}
	region.Addr = nil
	return errors.Join(errs...)
}

// ReleaseRegion unmaps the region and, when no other mapping in any process
// still holds the object, removes it. removed reports whether it did.
func ReleaseRegion(ctx context.Context, region *MappedRegion) (removed bool, err error) {
	if region == nil || region.Addr == nil {
		return false, nil
	}
	removed = removeIfLast(int(region.handle), region.Name)
	return removed, UnmapRegion(ctx, region)
}

// RemoveRegion unlinks the named region regardless of its holders. Existing mappings stay valid.
func RemoveRegion(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := unix.Unlink(Path(name)); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink: %w", err)
	}
	return nil
}
