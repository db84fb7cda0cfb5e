package predictor

import (
	"bytes"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		plain   []byte
		encoded []byte
	}{
		{"empty", []byte{}, []byte{}},
		{"single", []byte{42}, []byte{42}},
		{"constant", []byte{5, 5, 5, 5}, []byte{5, 0, 0, 0}},
		{"ramp", []byte{10, 11, 12, 13, 14}, []byte{10, 1, 1, 1, 1}},
		{"wraps", []byte{10, 5, 2}, []byte{10, 251, 253}},
		{"unrolled", []byte{0, 1, 3, 6, 10, 15, 21, 28, 36, 45, 55}, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := slices.Clone(tt.plain)
			Encode(data)
			if !bytes.Equal(data, tt.encoded) {
				t.Errorf("Encode = %v, want %v", data, tt.encoded)
			}
			Decode(data)
			if !bytes.Equal(data, tt.plain) {
				t.Errorf("Decode = %v, want %v", data, tt.plain)
			}
		})
	}
}

func TestEncodeDecodeRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	for n := range 40 {
		plain := make([]byte, n*7)
		for i := range plain {
			plain[i] = byte(rng.Uint32())
		}
		data := slices.Clone(plain)
		Encode(data)
		Decode(data)
		if !bytes.Equal(data, plain) {
			t.Fatalf("length %d: round trip differs", len(plain))
		}
	}
}

func TestOrderHalfIsBijection(t *testing.T) {
	seen := make([]bool, 1<<16)
	for i := range 1 << 16 {
		k := OrderHalf(uint16(i))
		if seen[k] {
			t.Fatalf("OrderHalf(%#04x) = %#04x collides", i, k)
		}
		seen[k] = true
		if back := UnorderHalf(k); back != uint16(i) {
			t.Fatalf("UnorderHalf(OrderHalf(%#04x)) = %#04x", i, back)
		}
	}
}

func TestOrderHalfFollowsValue(t *testing.T) {
	// -inf, -2, -1, -0, +0, 1, 2, +inf
	ascending := []uint16{0xfc00, 0xc000, 0xbc00, 0x8000, 0x0000, 0x3c00, 0x4000, 0x7c00}
	for i := 1; i < len(ascending); i++ {
		a, b := OrderHalf(ascending[i-1]), OrderHalf(ascending[i])
		if a >= b {
			t.Errorf("OrderHalf(%#04x) = %#04x, not below OrderHalf(%#04x) = %#04x", ascending[i-1], a, ascending[i], b)
		}
	}

	words := slices.Clone(ascending)
	OrderHalfs(words)
	if !slices.IsSorted(words) {
		t.Errorf("OrderHalfs = %#04x, want ascending", words)
	}
	UnorderHalfs(words)
	if !slices.Equal(words, ascending) {
		t.Errorf("UnorderHalfs = %#04x, want %#04x", words, ascending)
	}
}

func BenchmarkEncode(b *testing.B) {
	data := make([]byte, 256*256*3*2)
	for i := range data {
		data[i] = byte(i)
	}
	b.SetBytes(int64(len(data)))
	for b.Loop() {
		Encode(data)
	}
}
