// Package half converts between float32 and IEEE 754 binary16 values, the
// 16-bit sample type of half channels.
package half

import (
	"math"
	"strconv"
)

// Half is a binary16 value: 1 sign bit, 5 exponent bits with bias 15 and
// 10 mantissa bits.
type Half uint16

const (
	signMask     = 0x8000
	exponentMask = 0x7c00
	mantissaMask = 0x03ff
	bias         = 15
)

// Special values.
const (
	Inf    Half = 0x7c00
	NegInf Half = 0xfc00
	NaN    Half = 0x7e00
	Max    Half = 0x7bff // 65504
)

// FromBits returns the Half with the given bit pattern.
func FromBits(bits uint16) Half { return Half(bits) }

// Bits returns the bit pattern of h.
func (h Half) Bits() uint16 { return uint16(h) }

// FromFloat64 rounds f to the nearest Half through float32.
func FromFloat64(f float64) Half { return FromFloat32(float32(f)) }

// FromFloat32 rounds f to the nearest Half, ties to even. Values beyond the
// half range become infinities and NaNs stay NaN.
func FromFloat32(f float32) Half {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & signMask
	exp := int(bits>>23) & 0xff
	man := bits & 0x007fffff

	if exp == 0xff {
		if man == 0 {
			return Half(sign | exponentMask)
		}
		// Keep the payload, and keep at least one mantissa bit set.
		return Half(sign | exponentMask | 0x0200 | uint16(man>>13))
	}

	e := exp - 127 + bias
	switch {
	case e >= 0x1f:
		return Half(sign | exponentMask)
	case e <= 0:
		// Subnormal or zero. The shift includes the implicit bit.
		if e < -10 {
			return Half(sign)
		}
		man |= 0x00800000
		shift := uint(14 - e)
		return Half(sign | uint16(roundShift(man, shift)))
	}
	// Rounding may carry into the exponent, which is the correct result,
	// up to and including infinity.
	v := uint32(e)<<10 | man>>13
	v += roundBit(man, 13)
	return Half(sign | uint16(v))
}

// roundShift returns v >> shift rounded to nearest, ties to even.
func roundShift(v uint32, shift uint) uint32 {
	return v>>shift + roundBit(v, shift)
}

// roundBit returns 1 when dropping the low shift bits of v must round up.
func roundBit(v uint32, shift uint) uint32 {
	half := uint32(1) << (shift - 1)
	rest := v & (half<<1 - 1)
	if rest > half || (rest == half && v>>shift&1 == 1) {
		return 1
	}
	return 0
}

// Float32 returns h as a float32. The conversion is exact.
func (h Half) Float32() float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&exponentMask) >> 10
	man := uint32(h & mantissaMask)
	switch exp {
	case 0:
		if man == 0 {
			return math.Float32frombits(sign)
		}
		// Normalize the subnormal.
		e := uint32(127 - bias + 1)
		for man&0x0400 == 0 {
			man <<= 1
			e--
		}
		return math.Float32frombits(sign | e<<23 | (man&mantissaMask)<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | man<<13)
	}
	return math.Float32frombits(sign | (exp+127-bias)<<23 | man<<13)
}

// IsNaN reports whether h is a NaN.
func (h Half) IsNaN() bool { return h&exponentMask == exponentMask && h&mantissaMask != 0 }

// IsInf reports whether h is an infinity of either sign.
func (h Half) IsInf() bool { return h&^signMask == Inf }

// IsFinite reports whether h is neither infinite nor NaN.
func (h Half) IsFinite() bool { return h&exponentMask != exponentMask }

func (h Half) String() string {
	return strconv.FormatFloat(float64(h.Float32()), 'g', -1, 32)
}
