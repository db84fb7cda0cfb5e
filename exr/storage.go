package exr

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// Storage is a seekable medium holding chunks. Implementations report
// medium failures as ErrIO and reads past the end as ErrTruncatedFile.
// A Storage is used by one goroutine at a time.
type Storage interface {
	// ReadExact fills p from the current position.
	ReadExact(p []byte) error
	// WriteAll writes p at the current position.
	WriteAll(p []byte) error
	// Seek moves the current position to an absolute offset.
	Seek(pos int64) error
	// Position returns the current position.
	Position() int64
}

// Storages that also implement io.ReaderAt are read concurrently by Read.
var (
	_ io.ReaderAt = (*MemoryStorage)(nil)
	_ io.ReaderAt = (*FileStorage)(nil)
)

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrIO, op, err)
}

// readError classifies an error from a read of n bytes at off.
func readError(n int, off int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %d bytes at offset %d", ErrTruncatedFile, n, off)
	}
	return ioError("read", err)
}

// StreamStorage adapts an io.Reader, optionally also an io.Writer and
// io.Seeker. Without a Seeker only forward seeks are possible; they skip
// the bytes in between.
type StreamStorage struct {
	r   io.Reader
	w   io.Writer
	s   io.Seeker
	pos int64
}

// NewStreamStorage returns a storage over rw, positioned at its current
// offset.
func NewStreamStorage(rw io.ReadWriteSeeker) (*StreamStorage, error) {
	pos, err := rw.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, ioError("seek", err)
	}
	return &StreamStorage{r: rw, w: rw, s: rw, pos: pos}, nil
}

// NewReaderStorage returns a read-only, forward-only storage over r.
func NewReaderStorage(r io.Reader) *StreamStorage {
	return &StreamStorage{r: r}
}

func (s *StreamStorage) ReadExact(p []byte) error {
	n, err := io.ReadFull(s.r, p)
	off := s.pos
	s.pos += int64(n)
	if err != nil {
		return readError(len(p), off, err)
	}
	return nil
}

func (s *StreamStorage) WriteAll(p []byte) error {
	if s.w == nil {
		return ioError("write", errors.New("read-only storage"))
	}
	n, err := s.w.Write(p)
	s.pos += int64(n)
	if err != nil {
		return ioError("write", err)
	}
	return nil
}

func (s *StreamStorage) Seek(pos int64) error {
	delta := SeekDelta(pos, s.pos)
	if delta == 0 {
		return nil
	}
	if s.s != nil {
		if _, err := s.s.Seek(pos, io.SeekStart); err != nil {
			return ioError("seek", err)
		}
		s.pos = pos
		return nil
	}
	if delta < 0 {
		return ioError("seek", fmt.Errorf("cannot move back from %d to %d", s.pos, pos))
	}
	n, err := io.CopyN(io.Discard, s.r, delta)
	s.pos += n
	if err != nil {
		return readError(int(delta), s.pos-n, err)
	}
	return nil
}

func (s *StreamStorage) Position() int64 { return s.pos }

// MemoryStorage keeps the medium in a growable byte slice.
type MemoryStorage struct {
	data     []byte
	pos      int64
	readOnly bool
}

// NewMemoryStorage returns a storage holding data, positioned at 0. The
// storage takes ownership of data.
func NewMemoryStorage(data []byte) *MemoryStorage {
	return &MemoryStorage{data: data}
}

// Bytes returns the stored bytes. The slice is only valid until the next
// write.
func (m *MemoryStorage) Bytes() []byte { return m.data }

// Len returns the size of the medium.
func (m *MemoryStorage) Len() int64 { return int64(len(m.data)) }

func (m *MemoryStorage) ReadExact(p []byte) error {
	if m.pos > int64(len(m.data)) || int64(len(p)) > int64(len(m.data))-m.pos {
		return fmt.Errorf("%w: %d bytes at offset %d of %d", ErrTruncatedFile, len(p), m.pos, len(m.data))
	}
	m.pos += int64(copy(p, m.data[m.pos:]))
	return nil
}

func (m *MemoryStorage) WriteAll(p []byte) error {
	if m.readOnly {
		return ioError("write", errors.New("read-only storage"))
	}
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		m.data = slices.Grow(m.data, int(end)-len(m.data))[:end]
	}
	copy(m.data[m.pos:], p)
	m.pos = end
	return nil
}

func (m *MemoryStorage) Seek(pos int64) error {
	if pos < 0 {
		return ioError("seek", fmt.Errorf("negative position %d", pos))
	}
	m.pos = pos
	return nil
}

func (m *MemoryStorage) Position() int64 { return m.pos }

// ReadAt reads without moving the position. It is safe for concurrent use
// with other ReadAt calls.
func (m *MemoryStorage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// StorageOptions configures OpenFile.
type StorageOptions struct {
	// UseMmap maps the file into memory where the platform allows it.
	// OpenFile falls back to regular reads when mapping fails.
	UseMmap bool
}

// FileStorage is a read-only Storage over a file, optionally memory mapped.
type FileStorage struct {
	f      *os.File
	stream *StreamStorage
	mem    *MemoryStorage // set when mapped
	mapped []byte
}

// OpenFile opens path for reading.
func OpenFile(path string, opts StorageOptions) (*FileStorage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("open", err)
	}
	fs := &FileStorage{f: f}
	if opts.UseMmap {
		if data, err := mmapFile(f); err == nil {
			fs.mapped = data
			fs.mem = &MemoryStorage{data: data, readOnly: true}
			return fs, nil
		}
	}
	fs.stream = &StreamStorage{r: f, s: f}
	return fs, nil
}

// Mapped reports whether the file is memory mapped.
func (fs *FileStorage) Mapped() bool { return fs.mem != nil }

func (fs *FileStorage) storage() Storage {
	if fs.mem != nil {
		return fs.mem
	}
	return fs.stream
}

func (fs *FileStorage) ReadExact(p []byte) error { return fs.storage().ReadExact(p) }
func (fs *FileStorage) WriteAll(p []byte) error  { return fs.storage().WriteAll(p) }
func (fs *FileStorage) Seek(pos int64) error     { return fs.storage().Seek(pos) }
func (fs *FileStorage) Position() int64          { return fs.storage().Position() }

// ReadAt reads at an absolute offset without moving the position.
func (fs *FileStorage) ReadAt(p []byte, off int64) (int, error) {
	if fs.mem != nil {
		return fs.mem.ReadAt(p, off)
	}
	return fs.f.ReadAt(p, off)
}

// Close unmaps and closes the file.
func (fs *FileStorage) Close() error {
	var errs []error
	if fs.mapped != nil {
		errs = append(errs, munmapFile(fs.mapped))
		fs.mapped, fs.mem = nil, nil
	}
	errs = append(errs, fs.f.Close())
	if err := errors.Join(errs...); err != nil {
		return ioError("close", err)
	}
	return nil
}
