//go:build unix

package content

import (
	"os"

	"golang.org/x/sys/unix"
)

const mmapSupported = true

// mapFile maps size bytes of f read-only. The returned slice must be
// released with unmapFile on every exit path.
func mapFile(f *os.File, size int64) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}
