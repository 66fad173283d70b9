//go:build !unix

package content

import (
	"errors"
	"os"
)

const mmapSupported = false

func mapFile(f *os.File, size int64) ([]byte, error) {
	return nil, errors.ErrUnsupported
}

func unmapFile(data []byte) error {
	return errors.ErrUnsupported
}
