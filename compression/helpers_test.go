package compression

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/mrjoshuak/go-exrcore/half"
	"github.com/mrjoshuak/go-exrcore/internal/xdr"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

type testShape struct {
	name  string
	shape pixel.Layout
}

func subsampled(name string, t pixel.Type, sx, sy int) pixel.Channel {
	c := pixel.NewChannel(name, t)
	c.XSampling, c.YSampling = sx, sy
	return c
}

// testShapes covers degenerate, odd, even, subsampled and mixed-type blocks.
func testShapes() []testShape {
	rgb := []pixel.Channel{
		pixel.NewChannel("R", pixel.Half),
		pixel.NewChannel("G", pixel.Half),
		pixel.NewChannel("B", pixel.Half),
	}
	return []testShape{
		{"1x1 half", pixel.MustLayout(pixel.Rect{Width: 1, Height: 1}, rgb[:1])},
		{"4x4 half", pixel.MustLayout(pixel.Rect{Width: 4, Height: 4}, rgb[:1])},
		{"7x5 rgb", pixel.MustLayout(pixel.Rect{Width: 7, Height: 5}, rgb)},
		{"64x64 rgb", pixel.MustLayout(pixel.Rect{Width: 64, Height: 64}, rgb)},
		{"257x3 wide", pixel.MustLayout(pixel.Rect{Width: 257, Height: 3}, rgb[:2])},
		{"2x33 tall", pixel.MustLayout(pixel.Rect{Width: 2, Height: 33}, rgb[:1])},
		{"13x9 mixed", pixel.MustLayout(pixel.Rect{Width: 13, Height: 9}, []pixel.Channel{
			pixel.NewChannel("A", pixel.Half),
			pixel.NewChannel("Z", pixel.Float),
			pixel.NewChannel("id", pixel.Uint),
		})},
		{"subsampled", pixel.MustLayout(pixel.Rect{X: 3, Y: -5, Width: 11, Height: 10}, []pixel.Channel{
			pixel.NewChannel("Y", pixel.Half),
			subsampled("BY", pixel.Half, 2, 2),
			subsampled("RY", pixel.Half, 2, 2),
			subsampled("depth", pixel.Float, 1, 3),
		})},
	}
}

// fillBlock stores f(sample) into every sample of a new block. Values are
// truncated to the sample width.
func fillBlock(shape pixel.Layout, f func(s pixel.Sample) uint32) []byte {
	buf := make([]byte, shape.RawSize())
	chs := shape.Channels()
	for s := range shape.Samples() {
		v := f(s)
		if chs[s.Channel].Type.Size() == 2 {
			xdr.ByteOrder.PutUint16(buf[s.Offset:], uint16(v))
		} else {
			xdr.ByteOrder.PutUint32(buf[s.Offset:], v)
		}
	}
	return buf
}

func randomBlock(rng *rand.Rand, shape pixel.Layout) []byte {
	return fillBlock(shape, func(pixel.Sample) uint32 { return rng.Uint32() })
}

// smoothBlock holds a gradient typical of image data.
func smoothBlock(shape pixel.Layout) []byte {
	chs := shape.Channels()
	return fillBlock(shape, func(s pixel.Sample) uint32 {
		v := 0.5 + 0.4*math.Sin(float64(s.X)*0.21+float64(s.Channel)) *
			math.Cos(float64(s.Y)*0.17)
		switch chs[s.Channel].Type {
		case pixel.Half:
			return uint32(half.FromFloat64(v).Bits())
		case pixel.Float:
			return math.Float32bits(float32(v))
		}
		return uint32(s.X*31 + s.Y)
	})
}

func roundTrip(t *testing.T, m Method, raw []byte, shape pixel.Layout) []byte {
	t.Helper()
	c, err := For(m)
	if err != nil {
		t.Fatalf("For(%v): %v", m, err)
	}
	chunk, err := c.Compress(raw, shape)
	if err != nil {
		t.Fatalf("%v Compress: %v", m, err)
	}
	if len(chunk.Data) > len(raw) {
		t.Fatalf("%v chunk of %d bytes is larger than the %d byte block", m, len(chunk.Data), len(raw))
	}
	out, err := c.Decompress(chunk, len(raw), shape)
	if err != nil {
		t.Fatalf("%v Decompress: %v", m, err)
	}
	return out
}
