//go:build !windows

package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	POSIX side of ShmRegion: shm_open/ftruncate/mmap.
 *
 * Description:	create_temp retries on EEXIST the way the original
 *		Carla bridge does it, rather than taking a directory
 *		lock: shm_open(O_CREAT|O_EXCL) already gives us the
 *		atomicity we need, we just have to pick a new suffix
 *		and try again on collision.
 *
 *------------------------------------------------------------------*/

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var shmLog = componentLogger("shm")

// Region is a single named POSIX shared memory mapping.
type Region struct {
	name  string
	owner bool
	fd    int
	size  int
	data  []byte
}

// Name returns the full OS-level object name (prefix+suffix).
func (r *Region) Name() string { return r.name }

// Size returns the current mapped size in bytes, 0 before Map.
func (r *Region) Size() int { return r.size }

// Bytes exposes the current mapping for typed read/write helpers built
// on top (RingBuffer, AudioPool, BridgeTimeInfo). Valid only between
// Map and Unmap.
func (r *Region) Bytes() []byte { return r.data }

// CreateTemp creates a brand-new shared memory object under prefix
// with a random 6-character suffix, retrying on name collision.
func CreateTemp(prefix Prefix) (*Region, error) {
	for attempt := 0; attempt < maxCreateTempRetries; attempt++ {
		suffix := randomSuffix()
		name := FullName(prefix, suffix)

		fd, err := unix.ShmOpen(name, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0600)
		if err != nil {
			if errors.Is(err, unix.EEXIST) {
				continue
			}
			return nil, fmt.Errorf("%w: shm_open %q: %v", errShmCreate, name, err)
		}

		shmLog.Debug("created shared memory region", "name", name, "attempt", attempt)
		return &Region{name: name, owner: true, fd: fd}, nil
	}
	return nil, fmt.Errorf("%w: exhausted %d suffix attempts for prefix %q", errShmCreate, maxCreateTempRetries, prefix)
}

// Attach opens an existing shared memory object by its exact name.
func Attach(name string) (*Region, error) {
	fd, err := unix.ShmOpen(name, unix.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: shm_open %q: %v", errShmAttach, name, err)
	}
	shmLog.Debug("attached shared memory region", "name", name)
	return &Region{name: name, owner: false, fd: fd}, nil
}

// Map sizes the region (owner only, via ftruncate) and mmaps it
// read-write into the process. Both sides call this with the same
// size once the owner has announced it.
func (r *Region) Map(size int) error {
	if r.owner {
		if err := unix.Ftruncate(r.fd, int64(size)); err != nil {
			return fmt.Errorf("%w: ftruncate %q to %d: %v", errShmMap, r.name, size, err)
		}
	}

	data, err := unix.Mmap(r.fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("%w: mmap %q size %d: %v", errShmMap, r.name, size, err)
	}

	// Best-effort: lock the mapping in RAM so the RT side never pages
	// fault into it. Not fatal if unsupported/unprivileged.
	if err := unix.Mlock(data); err != nil {
		shmLog.Warn("mlock failed, continuing without it", "name", r.name, "err", err)
	}

	r.data = data
	r.size = size
	return nil
}

// Unmap releases the current mapping. Idempotent.
func (r *Region) Unmap() error {
	if r.data == nil {
		return nil
	}
	_ = unix.Munlock(r.data)
	err := unix.Munmap(r.data)
	r.data = nil
	r.size = 0
	if err != nil {
		return fmt.Errorf("munmap %q: %w", r.name, err)
	}
	return nil
}

// Close unmaps and, if this side is the owner, unlinks the shm object.
// Idempotent.
func (r *Region) Close() error {
	if err := r.Unmap(); err != nil {
		return err
	}
	if r.fd >= 0 {
		unix.Close(r.fd)
		r.fd = -1
	}
	if r.owner {
		if err := unix.ShmUnlink(r.name); err != nil && !errors.Is(err, unix.ENOENT) {
			return fmt.Errorf("shm_unlink %q: %w", r.name, err)
		}
	}
	return nil
}
