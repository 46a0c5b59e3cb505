//go:build darwin

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CreateRing creates (or recreates) the named segment, sized and zeroed.
func CreateRing(name string) (*RingBuffer, error) {
	// A stale segment from a crashed writer may have a different size.
	_ = shmUnlink(name)

	fd, err := shmOpen(name, unix.O_CREAT|unix.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm_open %s: %w", name, err)
	}

	if err := unix.Ftruncate(fd, SHMSize); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate %s: %w", name, err)
	}

	buf, err := unix.Mmap(fd, 0, SHMSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}
	clear(buf)

	return &RingBuffer{buf: buf, name: name, fd: fd}, nil
}

// OpenRing maps an existing segment read-only.
func OpenRing(name string) (*RingBuffer, error) {
	fd, err := shmOpen(name, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("shm_open %s: %w", name, err)
	}

	buf, err := unix.Mmap(fd, 0, SHMSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}

	return &RingBuffer{buf: buf, name: name, fd: fd}, nil
}

// Close unmaps and closes the segment without unlinking it.
func (r *RingBuffer) Close() error {
	if r.fd < 0 {
		return nil
	}
	if err := unix.Munmap(r.buf); err != nil {
		return err
	}
	err := unix.Close(r.fd)
	r.fd = -1
	return err
}

// Unlink removes the named segment.
func (r *RingBuffer) Unlink() error {
	if r.name == "" {
		return nil
	}
	return shmUnlink(r.name)
}
