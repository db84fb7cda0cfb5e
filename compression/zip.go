package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/mrjoshuak/go-exrcore/pixel"
)

// CompressionLevel is a zlib compression level, -2 to 9.
type CompressionLevel int

// Standard compression levels.
const (
	CompressionLevelHuffmanOnly CompressionLevel = -2 // klauspost extension
	CompressionLevelDefault     CompressionLevel = -1
	CompressionLevelNone        CompressionLevel = 0
	CompressionLevelBestSpeed   CompressionLevel = 1
	CompressionLevelBestSize    CompressionLevel = 9
)

type zlibWriterPoolItem struct {
	writer *zlib.Writer
	buf    *bytes.Buffer
}

var zlibWriterPool = sync.Pool{
	New: func() any {
		buf := new(bytes.Buffer)
		w, _ := zlib.NewWriterLevel(buf, zlib.DefaultCompression)
		return &zlibWriterPoolItem{writer: w, buf: buf}
	},
}

// ZIPCompress deflates src with a zlib wrapper at the default level.
func ZIPCompress(src []byte) ([]byte, error) {
	return ZIPCompressLevel(src, CompressionLevelDefault)
}

// ZIPCompressLevel deflates src at the given level. Only the default level
// uses pooled writers.
func ZIPCompressLevel(src []byte, level CompressionLevel) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	if level == CompressionLevelDefault {
		item := zlibWriterPool.Get().(*zlibWriterPoolItem)
		defer zlibWriterPool.Put(item)
		item.buf.Reset()
		item.writer.Reset(item.buf)
		if _, err := item.writer.Write(src); err != nil {
			return nil, err
		}
		if err := item.writer.Close(); err != nil {
			return nil, err
		}
		return bytes.Clone(item.buf.Bytes()), nil
	}

	buf := new(bytes.Buffer)
	w, err := zlib.NewWriterLevel(buf, int(level))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib level %d", ErrConfiguration, level)
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type zlibReaderPoolItem struct {
	reader io.ReadCloser
	src    *bytes.Reader
}

var zlibReaderPool = sync.Pool{
	New: func() any {
		return &zlibReaderPoolItem{src: bytes.NewReader(nil)}
	},
}

// ZIPDecompress inflates src, which must expand to exactly expectedSize bytes.
func ZIPDecompress(src []byte, expectedSize int) ([]byte, error) {
	dst := make([]byte, expectedSize)
	if err := ZIPDecompressTo(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}

// ZIPDecompressTo inflates src into dst, which must be exactly the size of
// the inflated data.
func ZIPDecompressTo(dst, src []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return fmt.Errorf("%w: empty stream", ErrZIPCorrupted)
		}
		return nil
	}

	item := zlibReaderPool.Get().(*zlibReaderPoolItem)
	defer zlibReaderPool.Put(item)
	item.src.Reset(src)

	var err error
	if r, ok := item.reader.(zlib.Resetter); ok {
		err = r.Reset(item.src, nil)
	} else {
		item.reader, err = zlib.NewReader(item.src)
	}
	if err != nil {
		item.reader = nil
		return fmt.Errorf("%w: %v", ErrZIPCorrupted, err)
	}

	n, err := io.ReadFull(item.reader, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %v", ErrZIPCorrupted, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%w: inflated %d of %d bytes", ErrZIPCorrupted, n, len(dst))
	}
	// The stream must end here.
	var extra [1]byte
	if m, _ := item.reader.Read(extra[:]); m != 0 {
		return fmt.Errorf("%w: inflated data exceeds %d bytes", ErrZIPCorrupted, len(dst))
	}
	return nil
}

// zipCodec deflates prepared block bytes. The number of scanlines per block
// only affects how blocks are cut, not the encoding.
type zipCodec struct {
	level CompressionLevel
}

func (c zipCodec) encode(raw []byte, _ pixel.Layout) ([]byte, error) {
	return ZIPCompressLevel(prepareBytes(raw), c.level)
}

func (zipCodec) decode(data []byte, shape pixel.Layout) ([]byte, error) {
	buf, err := ZIPDecompress(data, shape.RawSize())
	if err != nil {
		return nil, err
	}
	return restoreBytes(buf), nil
}
