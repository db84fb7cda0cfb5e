package compression

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mrjoshuak/go-exrcore/pixel"
)

func TestMethodValidate(t *testing.T) {
	valid := allMethods()
	valid = append(valid, NewDWA(0), NewHTJ2K(32), NewZSTD(1), NewZSTD(22))
	for _, m := range valid {
		if err := m.Validate(); err != nil {
			t.Errorf("%v: %v", m, err)
		}
	}
	invalid := []Method{NewZIP(0), NewDWA(-1), NewHTJ2K(64), NewZSTD(0), NewZSTD(23), {kind: Kind(42)}}
	for _, m := range invalid {
		if err := m.Validate(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("%v: error = %v, want ErrConfiguration", m, err)
		}
		if _, err := For(m); !errors.Is(err, ErrConfiguration) {
			t.Errorf("For(%v): error = %v, want ErrConfiguration", m, err)
		}
	}
}

func TestMethodProperties(t *testing.T) {
	tests := []struct {
		m     Method
		name  string
		lossy bool
		lines int
	}{
		{None, "none", false, 1},
		{Method{}, "none", false, 1},
		{RLE, "rle", false, 1},
		{NewZIP(1), "zip(1)", false, 1},
		{NewZIP(16), "zip(16)", false, 16},
		{PXR24, "pxr24", true, 32},
		{NewB44(false), "b44", true, 32},
		{NewB44(true), "b44a", true, 32},
		{PIZ, "piz", false, 32},
		{NewDWA(45), "dwa(45)", true, 256},
		{NewHTJ2K(32), "htj2k(32)", false, 32},
		{NewZSTD(3), "zstd(3)", false, 1},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.m.Lossy(); got != tt.lossy {
			t.Errorf("%v: Lossy() = %v", tt.m, got)
		}
		if got := tt.m.ScanlinesPerBlock(); got != tt.lines {
			t.Errorf("%v: ScanlinesPerBlock() = %d, want %d", tt.m, got, tt.lines)
		}
	}
	if got := Kind(99).String(); got != "Kind(99)" {
		t.Errorf("Kind(99).String() = %q", got)
	}
}

func TestCodecRoundTripAllMethods(t *testing.T) {
	for _, m := range allMethods() {
		if m.Lossy() {
			continue
		}
		for _, ts := range testShapes() {
			t.Run(m.String()+"/"+ts.name, func(t *testing.T) {
				raw := smoothBlock(ts.shape)
				if got := roundTrip(t, m, raw, ts.shape); !bytes.Equal(got, raw) {
					t.Fatal("round trip mismatch")
				}
			})
		}
	}
}

func TestCodecStoresIncompressibleBlocks(t *testing.T) {
	shape := pixel.MustLayout(pixel.Rect{Width: 2, Height: 1}, []pixel.Channel{pixel.NewChannel("Y", pixel.Half)})
	raw := []byte{0x12, 0x9a, 0x77, 0x03}
	for _, m := range []Method{None, RLE, NewZIP(1), PIZ, NewZSTD(3)} {
		chunk, err := Compress(m, raw, shape)
		if err != nil {
			t.Fatal(err)
		}
		if !chunk.Stored() || !bytes.Equal(chunk.Data, raw) {
			t.Errorf("%v: 4-byte block not stored raw: %x", m, chunk.Data)
		}
		got, err := Decompress(m, chunk, len(raw), shape)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("%v: stored chunk decoded to %x", m, got)
		}
		got[0] ^= 0xff
		if chunk.Data[0] != raw[0] {
			t.Errorf("%v: decoded block aliases the chunk", m)
		}
	}
}

func TestCodecSizeChecks(t *testing.T) {
	shape := testShapes()[1].shape
	raw := smoothBlock(shape)
	c := MustFor(NewZIP(1))

	if _, err := c.Compress(raw[:len(raw)-2], shape); !errors.Is(err, ErrConfiguration) {
		t.Errorf("short block: error = %v, want ErrConfiguration", err)
	}
	chunk, err := c.Compress(raw, shape)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decompress(chunk, len(raw)+2, shape); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("wrong expected size: error = %v, want ErrSizeMismatch", err)
	}
	long := Chunk{Data: make([]byte, len(raw)+1), UncompressedSize: len(raw)}
	if _, err := c.Decompress(long, len(raw), shape); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("oversized chunk: error = %v, want ErrSizeMismatch", err)
	}
	if _, err := MustFor(None).Decompress(Chunk{Data: raw[:4]}, len(raw), shape); !errors.Is(err, ErrCorruptData) {
		t.Errorf("short uncompressed chunk: error = %v, want ErrCorruptData", err)
	}
}

func TestCodecEmptyBlock(t *testing.T) {
	shape := pixel.MustLayout(pixel.Rect{Width: 0, Height: 0}, []pixel.Channel{pixel.NewChannel("Y", pixel.Half)})
	for _, m := range allMethods() {
		chunk, err := Compress(m, nil, shape)
		if err != nil {
			t.Fatalf("%v: %v", m, err)
		}
		if len(chunk.Data) != 0 {
			t.Errorf("%v: empty block gave %d bytes", m, len(chunk.Data))
		}
		got, err := Decompress(m, chunk, 0, shape)
		if err != nil || len(got) != 0 {
			t.Errorf("%v: Decompress = %d bytes, %v", m, len(got), err)
		}
	}
}

func TestMustForPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustFor did not panic")
		}
	}()
	MustFor(NewZIP(0))
}
