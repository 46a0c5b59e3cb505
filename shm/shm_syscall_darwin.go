//go:build darwin

package shm

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// shm_open and shm_unlink are libc functions on macOS with no x/sys wrapper,
// so they are resolved from libSystem at first use.
var (
	libcOnce    sync.Once
	libcErr     error
	fnShmOpen   func(name *byte, oflag int32, mode uint16) int32
	fnShmUnlink func(name *byte) int32
)

func loadLibc() error {
	libcOnce.Do(func() {
		lib, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_LAZY)
		if err != nil {
			libcErr = fmt.Errorf("dlopen libSystem: %w", err)
			return
		}
		purego.RegisterLibFunc(&fnShmOpen, lib, "shm_open")
		purego.RegisterLibFunc(&fnShmUnlink, lib, "shm_unlink")
	})
	return libcErr
}

// cString returns a NUL-terminated copy of s.
func cString(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

func shmOpen(name string, flags int, mode uint32) (int, error) {
	if err := loadLibc(); err != nil {
		return -1, err
	}
	// POSIX shm names start with a slash.
	path := "/" + name
	fd := fnShmOpen(cString(path), int32(flags), uint16(mode))
	if fd < 0 {
		return -1, fmt.Errorf("shm_open(%q) returned %d", path, fd)
	}
	return int(fd), nil
}

func shmUnlink(name string) error {
	if err := loadLibc(); err != nil {
		return err
	}
	path := "/" + name
	if ret := fnShmUnlink(cString(path)); ret < 0 {
		return fmt.Errorf("shm_unlink(%q) returned %d", path, ret)
	}
	return nil
}
