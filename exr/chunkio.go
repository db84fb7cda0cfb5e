package exr

import (
	"fmt"
	"io"
	"math"

	"github.com/mrjoshuak/go-exrcore/internal/xdr"
)

// On storage, a chunk table is one uint64 offset per chunk, little endian,
// and each chunk is a uint32 length followed by that many bytes.
const (
	offsetSize      = 8
	chunkHeaderSize = 4
	maxChunkLength  = math.MaxInt32
)

// SeekDelta returns target - current, saturated to the int64 range.
func SeekDelta(target, current int64) int64 {
	d := target - current
	// Overflow happened iff the operands have different signs and the
	// result's sign differs from target's.
	if (target >= 0) != (current >= 0) && (d >= 0) != (target >= 0) {
		if target >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return d
}

// ChunkWriter writes chunks after a reserved chunk table and fills the
// table in when every chunk has been written.
type ChunkWriter struct {
	s        Storage
	tablePos int64
	offsets  []int64
	written  int
	finished bool
}

// NewChunkWriter reserves a table of count zero offsets at the current
// position.
func NewChunkWriter(s Storage, count int) (*ChunkWriter, error) {
	if count < 0 {
		return nil, configError("chunk count", count, "negative")
	}
	w := &ChunkWriter{s: s, tablePos: s.Position(), offsets: make([]int64, count)}
	if err := s.WriteAll(make([]byte, count*offsetSize)); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteChunk appends the chunk with table position index at the cursor.
func (w *ChunkWriter) WriteChunk(index int, data []byte) error {
	if w.finished {
		return configError("chunk", index, "writer already finished")
	}
	if index < 0 || index >= len(w.offsets) {
		return configError("chunk", index, "table has %d", len(w.offsets))
	}
	if w.offsets[index] != 0 {
		return configError("chunk", index, "written twice")
	}
	if len(data) > maxChunkLength {
		return configError("chunk length", len(data), "exceeds %d", maxChunkLength)
	}
	pos := w.s.Position()
	var hdr [chunkHeaderSize]byte
	xdr.ByteOrder.PutUint32(hdr[:], uint32(len(data)))
	if err := w.s.WriteAll(hdr[:]); err != nil {
		return err
	}
	if err := w.s.WriteAll(data); err != nil {
		return err
	}
	w.offsets[index] = pos
	w.written++
	return nil
}

// Offsets returns the chunk offsets recorded so far. Unwritten chunks are 0.
func (w *ChunkWriter) Offsets() []int64 { return w.offsets }

// Finish patches the chunk table and leaves the cursor after the last
// chunk. Every chunk must have been written.
func (w *ChunkWriter) Finish() error {
	if w.finished {
		return nil
	}
	if w.written != len(w.offsets) {
		for i, off := range w.offsets {
			if off == 0 {
				return configError("chunk", i, "never written")
			}
		}
	}
	end := w.s.Position()
	table := xdr.NewBufferWriter(len(w.offsets) * offsetSize)
	for _, off := range w.offsets {
		table.WriteUint64(uint64(off))
	}
	if err := w.s.Seek(w.tablePos); err != nil {
		return err
	}
	if err := w.s.WriteAll(table.Bytes()); err != nil {
		return err
	}
	if err := w.s.Seek(end); err != nil {
		return err
	}
	w.finished = true
	return nil
}

// ChunkReader reads chunks through a chunk table.
type ChunkReader struct {
	s       Storage
	offsets []int64
}

// ReadChunkTable reads a table of count offsets at the current position.
// An offset pointing into the table itself or before it is corrupt.
func ReadChunkTable(s Storage, count int) (*ChunkReader, error) {
	if count < 0 {
		return nil, configError("chunk count", count, "negative")
	}
	start := s.Position()
	buf := make([]byte, count*offsetSize)
	if err := s.ReadExact(buf); err != nil {
		return nil, fmt.Errorf("chunk table: %w", err)
	}
	end := start + int64(len(buf))
	r := xdr.NewReader(buf)
	offsets := make([]int64, count)
	for i := range offsets {
		v, _ := r.ReadUint64()
		if v > math.MaxInt64 || int64(v) < end {
			return nil, fmt.Errorf("%w: chunk table entry %d is %d, chunks start at %d", ErrCorruptData, i, v, end)
		}
		offsets[i] = int64(v)
	}
	return &ChunkReader{s: s, offsets: offsets}, nil
}

// Len returns the number of chunks in the table.
func (r *ChunkReader) Len() int { return len(r.offsets) }

// Offset returns the storage offset of a chunk.
func (r *ChunkReader) Offset(index int) int64 { return r.offsets[index] }

// ReadChunk reads one chunk through the storage cursor. Chunks longer than
// maxLen are corrupt.
func (r *ChunkReader) ReadChunk(index, maxLen int) ([]byte, error) {
	if index < 0 || index >= len(r.offsets) {
		return nil, configError("chunk", index, "table has %d", len(r.offsets))
	}
	if err := r.s.Seek(r.offsets[index]); err != nil {
		return nil, err
	}
	var hdr [chunkHeaderSize]byte
	if err := r.s.ReadExact(hdr[:]); err != nil {
		return nil, err
	}
	n, err := chunkLength(hdr[:], maxLen)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if err := r.s.ReadExact(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadChunkAt reads one chunk with positioned reads, leaving the storage
// cursor alone. It is safe for concurrent use when ra is. buf is used for
// the data when it is large enough.
func (r *ChunkReader) ReadChunkAt(ra io.ReaderAt, index, maxLen int, buf []byte) ([]byte, error) {
	if index < 0 || index >= len(r.offsets) {
		return nil, configError("chunk", index, "table has %d", len(r.offsets))
	}
	off := r.offsets[index]
	var hdr [chunkHeaderSize]byte
	if err := readFullAt(ra, hdr[:], off); err != nil {
		return nil, err
	}
	n, err := chunkLength(hdr[:], maxLen)
	if err != nil {
		return nil, err
	}
	data := buf
	if cap(data) < n {
		data = make([]byte, n)
	}
	data = data[:n]
	if err := readFullAt(ra, data, off+chunkHeaderSize); err != nil {
		return nil, err
	}
	return data, nil
}

func chunkLength(hdr []byte, maxLen int) (int, error) {
	n := int64(xdr.ByteOrder.Uint32(hdr))
	if n > int64(maxLen) {
		return 0, fmt.Errorf("%w: chunk of %d bytes, at most %d expected", ErrCorruptData, n, maxLen)
	}
	return int(n), nil
}

func readFullAt(ra io.ReaderAt, p []byte, off int64) error {
	n, err := ra.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return readError(len(p), off, err)
}
