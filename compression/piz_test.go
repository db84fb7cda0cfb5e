package compression

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/mrjoshuak/go-exrcore/half"
	"github.com/mrjoshuak/go-exrcore/internal/xdr"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

func TestWav2DEmpty(t *testing.T) {
	var data []uint16
	Wav2DEncode(data, 0, 0, 0)
	Wav2DDecode(data, 0, 0, 0)
}

func TestWav2DSingle(t *testing.T) {
	data := []uint16{42}
	Wav2DEncode(data, 1, 1, 42)
	Wav2DDecode(data, 1, 1, 42)
	if data[0] != 42 {
		t.Errorf("single value: got %d, want 42", data[0])
	}
}

func TestWav2DSquare(t *testing.T) {
	data := []uint16{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	original := slices.Clone(data)

	Wav2DEncode(data, 4, 4, 16)
	if slices.Equal(data, original) {
		t.Fatal("transform left the data unchanged")
	}
	Wav2DDecode(data, 4, 4, 16)
	if !slices.Equal(data, original) {
		t.Errorf("got %v, want %v", data, original)
	}
}

func TestWav2DAllShapes(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for _, limit := range []int{1 << 14, 1 << 16} {
		for nx := 1; nx <= 19; nx++ {
			for ny := 1; ny <= 19; ny++ {
				data := make([]uint16, nx*ny)
				var maxValue uint16
				for i := range data {
					data[i] = uint16(rng.IntN(limit))
					maxValue = max(maxValue, data[i])
				}
				original := slices.Clone(data)
				Wav2DEncode(data, nx, ny, maxValue)
				Wav2DDecode(data, nx, ny, maxValue)
				if !slices.Equal(data, original) {
					t.Fatalf("%dx%d below %d: round trip mismatch", nx, ny, limit)
				}
			}
		}
	}
}

func TestWav2DExtremes(t *testing.T) {
	for _, v := range []uint16{0, 1, 1<<14 - 1, 1 << 14, 0x7fff, 0x8000, 0xffff} {
		data := []uint16{v, 0, v, 0xffff, v, 0, 0, v, v}
		original := slices.Clone(data)
		Wav2DEncode(data, 3, 3, 0xffff)
		Wav2DDecode(data, 3, 3, 0xffff)
		if !slices.Equal(data, original) {
			t.Errorf("value %#x: got %v, want %v", v, data, original)
		}
	}
}

func TestPIZRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for _, ts := range testShapes() {
		t.Run(ts.name, func(t *testing.T) {
			for _, raw := range [][]byte{smoothBlock(ts.shape), randomBlock(rng, ts.shape)} {
				out, err := pizCodec{}.decode(mustEncode(t, pizCodec{}, raw, ts.shape), ts.shape)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				if !bytes.Equal(out, raw) {
					t.Fatal("round trip mismatch")
				}
				if got := roundTrip(t, PIZ, raw, ts.shape); !bytes.Equal(got, raw) {
					t.Fatal("codec round trip mismatch")
				}
			}
		})
	}
}

func mustEncode(t *testing.T, c blockCodec, raw []byte, shape pixel.Layout) []byte {
	t.Helper()
	data, err := c.encode(raw, shape)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestPIZConstantBlock(t *testing.T) {
	shape := pixel.MustLayout(pixel.Rect{Width: 4, Height: 4}, []pixel.Channel{pixel.NewChannel("Y", pixel.Half)})
	one := half.FromFloat32(1).Bits()
	raw := fillBlock(shape, func(pixel.Sample) uint32 { return uint32(one) })

	data := mustEncode(t, pizCodec{}, raw, shape)

	r := xdr.NewReader(data)
	lo, _ := r.ReadUint16()
	hi, _ := r.ReadUint16()
	if lo != hi {
		t.Errorf("bitmap spans bytes %d..%d, want one byte", lo, hi)
	}
	_ = r.Skip(int(hi-lo) + 1)
	_, _ = r.ReadUint32()
	im, _ := r.ReadUint32()
	iM, _ := r.ReadUint32()
	// one data symbol plus the run escape
	if im != 0 || iM != 1 {
		t.Errorf("huffman symbol range = [%d, %d], want [0, 1]", im, iM)
	}

	out, err := pizCodec{}.decode(data, shape)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := 0; i < len(out); i += 2 {
		if v := xdr.ByteOrder.Uint16(out[i:]); v != one {
			t.Fatalf("sample %d = %#04x, want %#04x", i/2, v, one)
		}
	}
	if n := len(out) / 2; n != 16 {
		t.Errorf("decoded %d samples, want 16", n)
	}
}

func TestPIZEmptyBlock(t *testing.T) {
	shape := pixel.MustLayout(pixel.Rect{Width: 0, Height: 4}, []pixel.Channel{pixel.NewChannel("Y", pixel.Half)})
	data := mustEncode(t, pizCodec{}, nil, shape)
	if len(data) != 0 {
		t.Fatalf("encoded %d bytes for an empty block", len(data))
	}
	out, err := pizCodec{}.decode(nil, shape)
	if err != nil || len(out) != 0 {
		t.Fatalf("decode = %v, %v", out, err)
	}
}

func TestPIZCorrupt(t *testing.T) {
	shape := pixel.MustLayout(pixel.Rect{Width: 2, Height: 1}, []pixel.Channel{pixel.NewChannel("Y", pixel.Half)})
	raw := make([]byte, 4)
	xdr.ByteOrder.PutUint16(raw, half.FromFloat32(1).Bits())
	xdr.ByteOrder.PutUint16(raw[2:], half.FromFloat32(2).Bits())
	valid := mustEncode(t, pizCodec{}, raw, shape)

	// Dropping the second value from the bitmap leaves a rank with no word.
	lo := xdr.ByteOrder.Uint16(valid)
	hi := xdr.ByteOrder.Uint16(valid[2:])
	missing := slices.Clone(valid)
	missing[4+int(hi-lo)] = 0

	badRange := slices.Clone(valid)
	xdr.ByteOrder.PutUint16(badRange, hi+1)

	hugeHuffman := slices.Clone(valid)
	xdr.ByteOrder.PutUint32(hugeHuffman[4+int(hi-lo)+1:], 1<<20)

	emptyBitmap := slices.Clone(valid)
	clear(emptyBitmap[4 : 4+int(hi-lo)+1])

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"header only", valid[:3], ErrInsufficientData},
		{"truncated bitmap", valid[:6], ErrInsufficientData},
		{"truncated huffman", valid[:len(valid)-1], ErrInsufficientData},
		{"huffman length", hugeHuffman, ErrInsufficientData},
		{"bitmap range", badRange, ErrCorruptData},
		{"empty bitmap", emptyBitmap, ErrCorruptData},
		{"rank outside bitmap", missing, ErrCorruptData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pizCodec{}.decode(tt.data, shape)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPIZCompresses(t *testing.T) {
	shape := testShapes()[3].shape // 64x64 rgb
	raw := smoothBlock(shape)
	chunk, err := Compress(PIZ, raw, shape)
	if err != nil {
		t.Fatal(err)
	}
	if chunk.Stored() {
		t.Fatal("smooth block was stored raw")
	}
	if len(chunk.Data) >= len(raw)*3/4 {
		t.Errorf("compressed %d bytes to %d", len(raw), len(chunk.Data))
	}
}

func FuzzPIZDecode(f *testing.F) {
	shape := pixel.MustLayout(pixel.Rect{Width: 5, Height: 3}, []pixel.Channel{
		pixel.NewChannel("A", pixel.Half),
		pixel.NewChannel("B", pixel.Float),
	})
	seed, _ := pizCodec{}.encode(smoothBlock(shape), shape)
	f.Add(seed)
	f.Add([]byte{0, 0, 0, 0})
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = pizCodec{}.decode(data, shape)
	})
}

func BenchmarkPIZCompress(b *testing.B) {
	shape := testShapes()[3].shape
	raw := smoothBlock(shape)
	b.SetBytes(int64(len(raw)))
	for b.Loop() {
		_, _ = pizCodec{}.encode(raw, shape)
	}
}

func BenchmarkPIZDecompress(b *testing.B) {
	shape := testShapes()[3].shape
	raw := smoothBlock(shape)
	data, _ := pizCodec{}.encode(raw, shape)
	b.SetBytes(int64(len(raw)))
	for b.Loop() {
		_, _ = pizCodec{}.decode(data, shape)
	}
}
