//go:build unix

package mem

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Region reserves size bytes of anonymous, writable, process-private memory
// and returns the mapping plus a release function.
func Region(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, errors.New("mem: region size must be positive")
	}
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	release := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return err
	}
	return data, release, nil
}
