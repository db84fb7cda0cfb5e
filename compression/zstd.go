package compression

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/mrjoshuak/go-exrcore/internal/interleave"
	"github.com/mrjoshuak/go-exrcore/internal/predictor"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

// ZSTD compression: each channel plane is regrouped by byte position, the
// result is delta coded and compressed as one zstd frame.

// zstdEncoderPools holds one *sync.Pool of encoders per level.
var zstdEncoderPools sync.Map

func zstdEncoderPool(level int) *sync.Pool {
	if p, ok := zstdEncoderPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := zstdEncoderPools.LoadOrStore(level, &sync.Pool{
		New: func() any {
			enc, err := zstd.NewWriter(nil,
				zstd.WithEncoderConcurrency(1),
				zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
				zstd.WithLowerEncoderMem(true),
			)
			if err != nil {
				panic(err)
			}
			return enc
		},
	})
	return p.(*sync.Pool)
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
			zstd.WithDecodeAllCapLimit(true),
		)
		if err != nil {
			panic(err)
		}
		return dec
	},
}

// ZSTDCompress compresses src as a single zstd frame at a zstd level (1..22).
func ZSTDCompress(src []byte, level int) []byte {
	if len(src) == 0 {
		return nil
	}
	pool := zstdEncoderPool(level)
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)
	return enc.EncodeAll(src, make([]byte, 0, len(src)/2))
}

// ZSTDDecompress decodes one zstd frame that must expand to exactly
// expectedSize bytes.
func ZSTDDecompress(src []byte, expectedSize int) ([]byte, error) {
	if len(src) == 0 {
		if expectedSize != 0 {
			return nil, fmt.Errorf("%w: empty stream", ErrZSTDCorrupted)
		}
		return []byte{}, nil
	}
	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)
	// One spare byte of capacity exposes oversized frames.
	out, err := dec.DecodeAll(src, make([]byte, 0, expectedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZSTDCorrupted, err)
	}
	if len(out) != expectedSize {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrZSTDCorrupted, len(out), expectedSize)
	}
	return out, nil
}

type zstdCodec struct {
	level int
}

func newZSTDCodec(level int) zstdCodec { return zstdCodec{level: level} }

func planeStrides(shape pixel.Layout) (sizes, strides []int) {
	for c, ch := range shape.Channels() {
		sizes = append(sizes, shape.PlaneSize(c))
		strides = append(strides, ch.Type.Size())
	}
	return sizes, strides
}

func (c zstdCodec) encode(raw []byte, shape pixel.Layout) ([]byte, error) {
	planes, err := shape.Planes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	_, strides := planeStrides(shape)
	buf := interleave.Group(planes, strides)
	predictor.Encode(buf)
	return ZSTDCompress(buf, c.level), nil
}

func (zstdCodec) decode(data []byte, shape pixel.Layout) ([]byte, error) {
	buf, err := ZSTDDecompress(data, shape.RawSize())
	if err != nil {
		return nil, err
	}
	predictor.Decode(buf)
	sizes, strides := planeStrides(shape)
	planes, err := interleave.Ungroup(buf, sizes, strides)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZSTDCorrupted, err)
	}
	return shape.JoinPlanes(planes)
}
