//go:build windows

package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Win32 side of ShmRegion: CreateFileMapping/MapViewOfFile.
 *
 * Description:	Windows has no EEXIST race to retry around the way
 *		POSIX shm_open does: CreateFileMapping either creates a
 *		brand new mapping or opens an existing one of the same
 *		name, and GetLastError tells us which. We treat
 *		ERROR_ALREADY_EXISTS the same way the unix side treats
 *		EEXIST: pick a new suffix and retry.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var shmLog = componentLogger("shm")

const localNamespace = `Local\`

// Region is a single named Win32 file-mapping view.
type Region struct {
	name   string
	owner  bool
	handle windows.Handle
	size   int
	data   []byte
}

func (r *Region) Name() string  { return r.name }
func (r *Region) Size() int     { return r.size }
func (r *Region) Bytes() []byte { return r.data }

// CreateTemp creates a new named file mapping under the Local\
// namespace with a random 6-character suffix, retrying on collision.
func CreateTemp(prefix Prefix) (*Region, error) {
	for attempt := 0; attempt < maxCreateTempRetries; attempt++ {
		suffix := randomSuffix()
		name := localNamespace + FullName(prefix, suffix)

		namePtr, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return nil, fmt.Errorf("%w: encode name %q: %v", errShmCreate, name, err)
		}

		// Defer sizing: Windows requires the max size up front, but
		// we don't know it yet. Map() below re-creates with the real
		// size via a SEC_COMMIT mapping once the caller knows it.
		sa := &windows.SecurityAttributes{Length: uint32(windowsSecurityAttributesSize())}

		h, err := windows.CreateFileMapping(windows.InvalidHandle, sa, windows.PAGE_READWRITE, 0, 0, namePtr)
		if err == windows.ERROR_ALREADY_EXISTS {
			if h != 0 {
				windows.CloseHandle(h)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: CreateFileMapping %q: %v", errShmCreate, name, err)
		}

		shmLog.Debug("created shared memory region", "name", name, "attempt", attempt)
		return &Region{name: name, owner: true, handle: h}, nil
	}
	return nil, fmt.Errorf("%w: exhausted %d suffix attempts for prefix %q", errShmCreate, maxCreateTempRetries, prefix)
}

// Attach opens an existing named file mapping by its exact name.
func Attach(name string) (*Region, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("%w: encode name %q: %v", errShmAttach, name, err)
	}

	h, err := windows.OpenFileMapping(windows.FILE_MAP_ALL_ACCESS, false, namePtr)
	if err != nil {
		return nil, fmt.Errorf("%w: OpenFileMapping %q: %v", errShmAttach, name, err)
	}
	shmLog.Debug("attached shared memory region", "name", name)
	return &Region{name: name, owner: false, handle: h}, nil
}

// Map maps size bytes of the region into the process. The owner must
// have created the mapping large enough; since CreateFileMapping needs
// the size up front and we deferred it in CreateTemp, the owner
// re-creates the mapping here with the final size.
func (r *Region) Map(size int) error {
	if r.owner {
		if r.handle != 0 {
			windows.CloseHandle(r.handle)
		}
		namePtr, err := windows.UTF16PtrFromString(r.name)
		if err != nil {
			return fmt.Errorf("%w: encode name %q: %v", errShmMap, r.name, err)
		}
		high := uint32(uint64(size) >> 32)
		low := uint32(uint64(size) & 0xffffffff)
		sa := &windows.SecurityAttributes{Length: uint32(windowsSecurityAttributesSize())}
		h, err := windows.CreateFileMapping(windows.InvalidHandle, sa, windows.PAGE_READWRITE, high, low, namePtr)
		if err != nil && err != windows.ERROR_ALREADY_EXISTS {
			return fmt.Errorf("%w: CreateFileMapping(sized) %q: %v", errShmMap, r.name, err)
		}
		r.handle = h
	}

	addr, err := windows.MapViewOfFile(r.handle, windows.FILE_MAP_ALL_ACCESS, 0, 0, uintptr(size))
	if err != nil {
		return fmt.Errorf("%w: MapViewOfFile %q size %d: %v", errShmMap, r.name, size, err)
	}

	r.data = unsafeBytes(addr, size)
	r.size = size
	return nil
}

// Unmap releases the current view. Idempotent.
func (r *Region) Unmap() error {
	if r.data == nil {
		return nil
	}
	addr := uintptr(unsafePointerOf(r.data))
	err := windows.UnmapViewOfFile(addr)
	r.data = nil
	r.size = 0
	if err != nil {
		return fmt.Errorf("UnmapViewOfFile %q: %w", r.name, err)
	}
	return nil
}

// Close unmaps and closes the mapping handle. Owner or not, Windows
// file mappings are reference-counted and vanish once every handle is
// closed, so there's no separate "unlink" step.
func (r *Region) Close() error {
	if err := r.Unmap(); err != nil {
		return err
	}
	if r.handle != 0 {
		windows.CloseHandle(r.handle)
		r.handle = 0
	}
	return nil
}

func windowsSecurityAttributesSize() int {
	// sizeof(SECURITY_ATTRIBUTES) on both 32- and 64-bit Windows.
	return 12
}
