package exrcore_test

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/mrjoshuak/go-exrcore/compression"
	"github.com/mrjoshuak/go-exrcore/exr"
	"github.com/mrjoshuak/go-exrcore/half"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

func rgb() []pixel.Channel {
	return []pixel.Channel{
		pixel.NewChannel("R", pixel.Half),
		pixel.NewChannel("G", pixel.Half),
		pixel.NewChannel("B", pixel.Half),
	}
}

// Example_levels lists the resolution pyramid of a mipmapped image.
func Example_levels() {
	levels, err := exr.ComputeLevels(exr.Resolution{Width: 10, Height: 10}, exr.RoundUp, exr.LevelModeMipmap)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	for _, l := range levels {
		fmt.Println(l.Index, l.Resolution.Width, l.Resolution.Height)
	}
	// Output:
	// (0,0) 10 10
	// (1,1) 5 5
	// (2,2) 3 3
	// (3,3) 2 2
	// (4,4) 1 1
}

// Example_blockOrder shows that decreasing-y files store the blocks of the
// increasing-y order backwards while keeping their sequential indices.
func Example_blockOrder() {
	a, err := exr.NewAddressing(&exr.Header{
		DataWindow:  pixel.Rect{Width: 32, Height: 32},
		Tiling:      &exr.Tiling{Width: 16, Height: 16},
		LineOrder:   exr.DecreasingY,
		Channels:    rgb(),
		Compression: compression.PIZ,
	})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	for i, tile := range a.EnumerateOrderedBlocks() {
		fmt.Println(i, tile.TileX, tile.TileY)
	}
	// Output:
	// 3 1 1
	// 2 0 1
	// 1 1 0
	// 0 0 0
}

// Example_writeRead writes every tile of a mipmapped image and reads the
// blocks back.
func Example_writeRead() {
	h := &exr.Header{
		DataWindow:  pixel.Rect{Width: 128, Height: 128},
		Tiling:      &exr.Tiling{Width: 64, Height: 64, Mode: exr.LevelModeMipmap},
		Channels:    rgb(),
		Compression: compression.PIZ,
	}
	a, err := exr.NewAddressing(h)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	source := func(b exr.BlockIndex) ([]byte, error) {
		layout, err := a.Layout(b)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, layout.RawSize())
		for s := range layout.Samples() {
			v := half.FromFloat64(float64(s.X+s.Y) / 256)
			buf[s.Offset], buf[s.Offset+1] = byte(v.Bits()), byte(v.Bits()>>8)
		}
		return buf, nil
	}

	storage := exr.NewMemoryStorage(nil)
	if err := exr.Write(context.Background(), storage, h, source, exr.WriteOptions{}); err != nil {
		fmt.Println("Error writing:", err)
		return
	}
	if err := storage.Seek(0); err != nil {
		fmt.Println("Error:", err)
		return
	}
	res, err := exr.Read(context.Background(), storage, h, exr.ReadOptions{})
	if err != nil {
		fmt.Println("Error reading:", err)
		return
	}
	fmt.Println("chunks:", a.ChunkCount())
	fmt.Println("decoded:", len(res.Blocks), "failed:", len(res.Failures))
	// Output:
	// chunks: 11
	// decoded: 11 failed: 0
}

// Example_compression compresses one block with PIZ.
func Example_compression() {
	layout := pixel.MustLayout(pixel.Rect{Width: 4, Height: 4}, rgb()[:1])
	raw := bytes.Repeat([]byte{0x00, 0x3c}, 16) // 1.0 in every sample

	chunk, err := compression.Compress(compression.PIZ, raw, layout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	out, err := compression.Decompress(compression.PIZ, chunk, layout.RawSize(), layout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println(bytes.Equal(out, raw))
	// Output: true
}

// Example_halfPrecision converts between float32 and half.
func Example_halfPrecision() {
	h := half.FromFloat32(1.0)
	fmt.Printf("%#04x %v\n", h.Bits(), h.Float32())
	fmt.Println(half.FromFloat32(1e6).IsInf(), half.FromFloat32(float32(math.NaN())).IsNaN())
	// Output:
	// 0x3c00 1
	// true true
}
