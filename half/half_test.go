package half

import (
	"math"
	"testing"
)

func TestFromFloat32(t *testing.T) {
	tests := []struct {
		in   float32
		want uint16
	}{
		{0, 0x0000},
		{float32(math.Copysign(0, -1)), 0x8000},
		{1, 0x3c00},
		{-2, 0xc000},
		{0.5, 0x3800},
		{65504, 0x7bff},
		{65520, 0x7c00}, // rounds up to infinity
		{1e6, 0x7c00},
		{-1e6, 0xfc00},
		{6.103515625e-5, 0x0400},
		{5.9604645e-8, 0x0001},
		{2.9802322e-8, 0x0000}, // half the smallest subnormal, ties to even
		{1 + 1.0/2048, 0x3c00}, // tie, even mantissa stays
		{1 + 3.0/2048, 0x3c02}, // tie, odd mantissa rounds up
		{float32(math.Inf(1)), 0x7c00},
		{float32(math.Inf(-1)), 0xfc00},
	}
	for _, tt := range tests {
		if got := FromFloat32(tt.in).Bits(); got != tt.want {
			t.Errorf("FromFloat32(%v) = %#04x, want %#04x", tt.in, got, tt.want)
		}
	}
	if !FromFloat32(float32(math.NaN())).IsNaN() {
		t.Error("NaN did not stay NaN")
	}
}

// Every finite half converts to float32 and back unchanged.
func TestRoundTripAllBits(t *testing.T) {
	for b := range 1 << 16 {
		h := FromBits(uint16(b))
		back := FromFloat32(h.Float32())
		if h.IsNaN() {
			if !back.IsNaN() {
				t.Fatalf("%#04x: NaN became %#04x", b, back.Bits())
			}
			continue
		}
		if back != h {
			t.Fatalf("%#04x -> %v -> %#04x", b, h.Float32(), back.Bits())
		}
	}
}

func TestPredicates(t *testing.T) {
	if !Inf.IsInf() || !NegInf.IsInf() || Max.IsInf() {
		t.Error("IsInf")
	}
	if Inf.IsFinite() || NaN.IsFinite() || !Max.IsFinite() {
		t.Error("IsFinite")
	}
	if !NaN.IsNaN() || Inf.IsNaN() {
		t.Error("IsNaN")
	}
	if got := Max.String(); got != "65504" {
		t.Errorf("Max.String() = %q", got)
	}
}

func FuzzFromFloat32(f *testing.F) {
	f.Add(float32(0.18))
	f.Add(float32(-70000))
	f.Add(float32(1e-7))
	f.Fuzz(func(t *testing.T, v float32) {
		h := FromFloat32(v)
		if math.IsNaN(float64(v)) {
			if !h.IsNaN() {
				t.Fatal("NaN lost")
			}
			return
		}
		got := h.Float32()
		if h.IsInf() {
			if math.Abs(float64(v)) < 65504 {
				t.Fatalf("%v overflowed", v)
			}
			return
		}
		// Nearest rounding stays within half an ulp.
		ulp := math.Max(math.Abs(float64(got))/1024, 5.9604645e-8)
		if math.Abs(float64(got-v)) > ulp/2+1e-12 {
			t.Fatalf("FromFloat32(%v) = %v", v, got)
		}
	})
}
