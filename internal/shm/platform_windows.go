//go:build windows

package shm

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procOpenFileMappingW = windows.NewLazySystemDLL("kernel32.dll").NewProc("OpenFileMappingW")

func openFileMapping(access uint32, inherit bool, name *uint16) (windows.Handle, error) {
	if err := procOpenFileMappingW.Find(); err != nil {
		return 0, err
	}
	var inh uintptr
	if inherit {
		inh = 1
	}
	r, _, err := procOpenFileMappingW.Call(uintptr(access), inh, uintptr(unsafe.Pointer(name)))
	if r == 0 {
		return 0, err
	}
	return windows.Handle(r), nil
}

// Path returns the kernel object name of the region.
func Path(name string) string {
	return `Local\` + name
}

// MapRegion maps or creates a shared memory region (Windows implementation).
// Sizes of existing regions are only known to page granularity, so an existing
// mapping is accepted when it is at least as large as requested.
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
	objName, err := windows.UTF16PtrFromString(Path(opts.Name))
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}

	var h windows.Handle
	created := false
	if opts.Create {
		if opts.Size == 0 {
			return nil, fmt.Errorf("create %s without size: %w", opts.Name, ErrSizeMismatch)
		}
		if err := CheckCapacity(uint64(opts.Size)); err != nil {
			return nil, fmt.Errorf("name:%s size:%d: %w", opts.Name, opts.Size, err)
		}
		size := uint64(opts.Size)
		h, err = windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE,
			uint32(size>>32), uint32(size&0xffffffff), objName)
		switch {
		case h != 0 && errors.Is(err, windows.ERROR_ALREADY_EXISTS):
		case err != nil:
			return nil, fmt.Errorf("CreateFileMapping: %w", err)
		default:
			created = true
		}
	} else {
		h, err = openFileMapping(windows.FILE_MAP_WRITE|windows.FILE_MAP_READ, false, objName)
		if err != nil {
			return nil, fmt.Errorf("OpenFileMapping: %w", err)
		}
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE|windows.FILE_MAP_READ, 0, 0, uintptr(opts.Size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}

	var info windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &info, unsafe.Sizeof(info)); err != nil {
		_ = windows.UnmapViewOfFile(addr)
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("VirtualQuery: %w", err)
	}
	size := opts.Size
	if size == 0 {
		size = int(info.RegionSize)
	} else if int(info.RegionSize) < size {
		_ = windows.UnmapViewOfFile(addr)
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("%s has %d bytes, want %d: %w", opts.Name, info.RegionSize, size, ErrSizeMismatch)
	}

	return &MappedRegion{
		Addr:    unsafe.Slice((*byte)(unsafe.Pointer(addr)), size),
		Name:    opts.Name,
		Created: created,
		handle:  uintptr(h),
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Windows implementation).
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var errs []error
	if err := windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&region.Addr[0]))); err != nil {
		errs = append(errs, fmt.Errorf("UnmapViewOfFile: %w", err))
	}
	if err := windows.CloseHandle(windows.Handle(region.handle)); err != nil {
		errs = append(errs, fmt.Errorf("CloseHandle: %w", err))
	}
	region.Addr = nil
	return errors.Join(errs...)
}

// ReleaseRegion unmaps the region. The kernel removes the object once the last
// handle in any process is closed, so removed is always false.
func ReleaseRegion(ctx context.Context, region *MappedRegion) (removed bool, err error) {
	return false, UnmapRegion(ctx, region)
}

// RemoveRegion is a no-op: the kernel drops a named mapping when its last handle closes.
func RemoveRegion(name string) error {
	return validateName(name)
}
