package compression

import (
	"fmt"
	"slices"

	"github.com/mrjoshuak/go-exrcore/pixel"
)

// Chunk is one compressed block in flight between a codec and the chunk
// table. Block is the caller's sequential block number; codecs leave it alone.
type Chunk struct {
	Data             []byte
	UncompressedSize int
	Block            int
}

// Stored reports whether the chunk holds the raw block bytes.
func (c Chunk) Stored() bool { return len(c.Data) == c.UncompressedSize }

// Codec compresses and decompresses single blocks. Implementations hold no
// mutable state and are safe for concurrent use.
type Codec interface {
	Method() Method

	// Compress encodes raw, which must be laid out as shape describes.
	// When the encoding is not strictly smaller than raw, the chunk holds
	// raw itself.
	Compress(raw []byte, shape pixel.Layout) (Chunk, error)

	// Decompress returns exactly expected bytes laid out as shape describes.
	// A chunk whose data is expected bytes long is taken as stored raw.
	Decompress(chunk Chunk, expected int, shape pixel.Layout) ([]byte, error)
}

// blockCodec is the method-specific part of a codec. decode must return
// exactly shape.RawSize() bytes.
type blockCodec interface {
	encode(raw []byte, shape pixel.Layout) ([]byte, error)
	decode(data []byte, shape pixel.Layout) ([]byte, error)
}

// For returns the codec for m.
func For(m Method) (Codec, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var impl blockCodec
	switch m.kind {
	case KindNone:
		impl = nil
	case KindRLE:
		impl = rleCodec{}
	case KindZIP:
		impl = zipCodec{level: CompressionLevelDefault}
	case KindPXR24:
		impl = pxr24Codec{}
	case KindB44:
		impl = b44Codec{flat: m.optimizeFlat}
	case KindPIZ:
		impl = pizCodec{}
	case KindDWA:
		impl = dwaCodec{quality: m.quality}
	case KindHTJ2K:
		impl = htj2kCodec{blockSize: m.blockSize}
	case KindZSTD:
		impl = newZSTDCodec(m.level)
	default:
		return nil, fmt.Errorf("%w: unknown method %v", ErrConfiguration, m.kind)
	}
	return &codec{method: m, impl: impl}, nil
}

// MustFor is like For but panics on an invalid method.
func MustFor(m Method) Codec {
	c, err := For(m)
	if err != nil {
		panic(err)
	}
	return c
}

// Compress is shorthand for For(m) followed by Compress.
func Compress(m Method, raw []byte, shape pixel.Layout) (Chunk, error) {
	c, err := For(m)
	if err != nil {
		return Chunk{}, err
	}
	return c.Compress(raw, shape)
}

// Decompress is shorthand for For(m) followed by Decompress.
func Decompress(m Method, chunk Chunk, expected int, shape pixel.Layout) ([]byte, error) {
	c, err := For(m)
	if err != nil {
		return nil, err
	}
	return c.Decompress(chunk, expected, shape)
}

type codec struct {
	method Method
	impl   blockCodec
}

func (c *codec) Method() Method { return c.method }

func (c *codec) Compress(raw []byte, shape pixel.Layout) (Chunk, error) {
	if len(raw) != shape.RawSize() {
		return Chunk{}, fmt.Errorf("%w: %v block of %d bytes, layout %v needs %d",
			ErrConfiguration, c.method, len(raw), shape.Rect(), shape.RawSize())
	}
	stored := Chunk{Data: raw, UncompressedSize: len(raw)}
	if c.impl == nil || len(raw) == 0 {
		return stored, nil
	}
	data, err := c.impl.encode(raw, shape)
	if err != nil {
		return Chunk{}, fmt.Errorf("%v: %w", c.method, err)
	}
	if len(data) >= len(raw) {
		return stored, nil
	}
	return Chunk{Data: data, UncompressedSize: len(raw)}, nil
}

func (c *codec) Decompress(chunk Chunk, expected int, shape pixel.Layout) ([]byte, error) {
	if expected != shape.RawSize() {
		return nil, fmt.Errorf("%w: %v block declares %d bytes, layout %v needs %d",
			ErrSizeMismatch, c.method, expected, shape.Rect(), shape.RawSize())
	}
	if chunk.UncompressedSize != 0 && chunk.UncompressedSize != expected {
		return nil, fmt.Errorf("%w: chunk holds %d bytes, want %d", ErrSizeMismatch, chunk.UncompressedSize, expected)
	}
	if len(chunk.Data) == expected {
		return slices.Clone(chunk.Data), nil
	}
	if c.impl == nil || len(chunk.Data) > expected {
		return nil, fmt.Errorf("%w: %v chunk of %d bytes for a %d byte block", ErrSizeMismatch, c.method, len(chunk.Data), expected)
	}
	out, err := c.impl.decode(chunk.Data, shape)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", c.method, err)
	}
	if len(out) != expected {
		return nil, fmt.Errorf("%w: %v produced %d bytes, want %d", ErrSizeMismatch, c.method, len(out), expected)
	}
	return out, nil
}
