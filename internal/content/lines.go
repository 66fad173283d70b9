package content

import (
	"bytes"
	"io"
	"os"
)

// FindLineOffsets scans path forward from offset 0 and returns the byte
// offsets at which logical lines start, up to maxLines entries. The
// first entry is always 0, even for an empty file. Only offsets are
// retained, so memory is bounded by O(maxLines) regardless of file
// size. The scanning strategy follows the same size threshold as Serve.
func (e *Engine) FindLineOffsets(path string, maxLines int) ([]int64, error) {
	if maxLines <= 0 {
		maxLines = 1
	}
	offsets := []int64{0}

	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 || maxLines == 1 {
		return offsets, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if e.shouldMmap(size) {
		data, err := mapFile(f, size)
		if err == nil {
			defer unmapFile(data)
			collectLineOffsets(data, 0, size, &offsets, maxLines)
			return offsets, nil
		}
		// Fall back to buffered scanning.
	}

	buf := make([]byte, e.chunkSize)
	var base int64
	for int64(len(offsets)) < int64(maxLines) {
		n, err := f.Read(buf)
		if n > 0 {
			collectLineOffsets(buf[:n], base, size, &offsets, maxLines)
			base += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return offsets, nil
}

// collectLineOffsets appends the offset following each newline in chunk
// (positioned at absolute offset base) while it stays below size and the
// maxLines cap is not reached. A newline as the very last byte of the
// file starts no new line.
func collectLineOffsets(chunk []byte, base, size int64, offsets *[]int64, maxLines int) {
	for len(*offsets) < maxLines {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return
		}
		next := base + int64(i) + 1
		if next < size {
			*offsets = append(*offsets, next)
		}
		chunk = chunk[i+1:]
		base += int64(i) + 1
	}
}

// ScanLines visits every logical line of path in order, calling visit
// with the 1-based line number and the line content without its
// trailing newline. visit returns false to stop early (the cooperative
// cancellation point for callers). The line slice is only valid during
// the call. A file with no trailing newline still yields its last line.
func (e *Engine) ScanLines(path string, visit func(lineNumber int, line []byte) bool) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	size := st.Size()
	if size == 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if e.shouldMmap(size) {
		data, err := mapFile(f, size)
		if err == nil {
			defer unmapFile(data)
			visitLines(data, visit)
			return nil
		}
	}

	return visitLinesReader(f, e.chunkSize, visit)
}

// visitLinesReader is the buffered counterpart of visitLines. Memory is
// bounded by the longest line, not the file size.
func visitLinesReader(r io.Reader, chunkSize int, visit func(lineNumber int, line []byte) bool) error {
	var pending []byte
	lineNumber := 1
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := buf[:n]
			for {
				i := bytes.IndexByte(data, '\n')
				if i < 0 {
					pending = append(pending, data...)
					break
				}
				line := data[:i]
				if len(pending) > 0 {
					pending = append(pending, data[:i]...)
					line = pending
				}
				if !visit(lineNumber, line) {
					return nil
				}
				pending = pending[:0]
				data = data[i+1:]
				lineNumber++
			}
		}
		if err == io.EOF {
			if len(pending) > 0 {
				visit(lineNumber, pending)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func visitLines(data []byte, visit func(lineNumber int, line []byte) bool) {
	lineNumber := 1
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			visit(lineNumber, data)
			return
		}
		if !visit(lineNumber, data[:i]) {
			return
		}
		data = data[i+1:]
		lineNumber++
	}
}
