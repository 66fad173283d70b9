// Package content serves byte ranges of arbitrary-size files and scans
// line structure without materializing whole files. Files at or above a
// size threshold are accessed through a read-only memory map; smaller
// files use buffered reads. Both strategies produce byte-identical
// output for the same (path, range) — the switch is purely a
// performance decision.
package content

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrInvalidRange is returned for ranges with start > end or start
// beyond the end of the file.
var ErrInvalidRange = errors.New("invalid byte range")

// ByteRange is an inclusive [Start, End] span of a file's bytes.
type ByteRange struct {
	Start int64
	End   int64
}

// Engine holds the content-access tunables. The zero value is not
// usable; construct with NewEngine.
type Engine struct {
	mmapMinSize int64
	chunkSize   int
}

// NewEngine creates an Engine. mmapMinSize is the smallest file size
// served through a memory map; chunkSize caps the bytes delivered (and
// therefore the blocking time) per stream step.
func NewEngine(mmapMinSize int64, chunkSize int) *Engine {
	if mmapMinSize <= 0 {
		mmapMinSize = 1024 * 1024
	}
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	return &Engine{mmapMinSize: mmapMinSize, chunkSize: chunkSize}
}

// ChunkSize returns the configured per-step chunk size.
func (e *Engine) ChunkSize() int {
	return e.chunkSize
}

// shouldMmap reports whether a file of the given size is served via a
// memory map.
func (e *Engine) shouldMmap(size int64) bool {
	return mmapSupported && size >= e.mmapMinSize
}

// ChunkStream is a finite, lazy sequence of byte chunks. It is not
// restartable; request a new stream to read again. Close must be called
// on every exit path — it releases the memory mapping or file handle.
//
// Chunks returned by Next are only valid until the next Next or Close
// call.
type ChunkStream struct {
	chunkSize int
	pos       int64 // next absolute byte to deliver
	end       int64 // inclusive
	strategy  string

	f      *os.File
	buf    []byte // buffered strategy scratch
	data   []byte // mmap strategy, whole-file mapping
	closed bool
}

// Strategy reports which delivery strategy the stream uses ("mmap" or
// "buffered").
func (s *ChunkStream) Strategy() string {
	return s.strategy
}

// Next returns the next chunk. It returns io.EOF once the range is
// exhausted; any other error means the stream aborted mid-range and no
// further chunks will follow.
func (s *ChunkStream) Next() ([]byte, error) {
	if s.closed {
		return nil, errors.New("stream closed")
	}
	if s.pos > s.end {
		return nil, io.EOF
	}

	n := int64(s.chunkSize)
	if remaining := s.end - s.pos + 1; remaining < n {
		n = remaining
	}

	if s.data != nil {
		chunk := s.data[s.pos : s.pos+n]
		s.pos += n
		return chunk, nil
	}

	read, err := io.ReadFull(s.f, s.buf[:n])
	if err != nil {
		// The file shrank or the read failed; surface it instead of
		// silently truncating.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("file truncated mid-stream: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("read failed mid-stream: %w", err)
	}
	s.pos += int64(read)
	return s.buf[:read], nil
}

// Close releases the stream's resources. It is safe to call multiple
// times.
func (s *ChunkStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.data != nil {
		if err := unmapFile(s.data); err != nil {
			errs = append(errs, err)
		}
		s.data = nil
	}
	if s.f != nil {
		if err := s.f.Close(); err != nil {
			errs = append(errs, err)
		}
		s.f = nil
	}
	return errors.Join(errs...)
}

// WriteTo drains the stream into w. It does not Close the stream.
func (s *ChunkStream) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}

// Serve opens a chunk stream over path. rng is nil for the entire file;
// otherwise Start and End are inclusive byte offsets that must satisfy
// 0 <= Start <= End < size. A missing file surfaces os.ErrNotExist; a
// bad range surfaces ErrInvalidRange.
func (e *Engine) Serve(path string, rng *ByteRange) (*ChunkStream, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	size := st.Size()

	start, end := int64(0), size-1
	if rng != nil {
		start, end = rng.Start, rng.End
		if start < 0 || start > end || start >= size || end >= size {
			return nil, fmt.Errorf("%w: [%d, %d] against size %d", ErrInvalidRange, start, end, size)
		}
	}

	stream := &ChunkStream{
		chunkSize: e.chunkSize,
		pos:       start,
		end:       end,
	}
	if size == 0 {
		// Empty file, no range: a stream that is immediately exhausted.
		stream.strategy = "buffered"
		stream.pos, stream.end = 0, -1
		return stream, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if e.shouldMmap(size) {
		data, err := mapFile(f, size)
		if err == nil {
			stream.strategy = "mmap"
			stream.f = f
			stream.data = data
			return stream, nil
		}
		// Mapping can fail on exotic filesystems; fall through to
		// buffered reads.
	}

	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	stream.strategy = "buffered"
	stream.f = f
	stream.buf = make([]byte, e.chunkSize)
	return stream, nil
}
