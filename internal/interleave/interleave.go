// Package interleave regroups multi-byte samples by byte position.
//
// Samples of one channel tend to agree in their high bytes and differ in
// their low bytes. Gathering byte 0 of every sample, then byte 1, and so on,
// gives general-purpose compressors long runs of similar bytes:
//
//	Input:  [A0, A1, B0, B1, C0, C1, D0, D1]  (4 half values)
//	Output: [A0, B0, C0, D0, A1, B1, C1, D1]
//
// Group and Ungroup apply the same reordering to each channel plane of a
// block separately, so channels of different widths never mix.
package interleave

import (
	"errors"
	"fmt"
)

// ErrSize reports plane sizes that do not match the buffer.
var ErrSize = errors.New("interleave: size mismatch")

// Transpose writes src, viewed as stride-byte elements, to dst with all bytes
// at the same offset within an element stored together. Trailing bytes that
// do not fill an element are copied as they are. dst and src must have the
// same length and must not overlap.
func Transpose(dst, src []byte, stride int) {
	if stride <= 1 {
		copy(dst, src)
		return
	}
	n := len(src) / stride
	for off := 0; off < stride; off++ {
		row := dst[off*n : (off+1)*n]
		for e := range row {
			row[e] = src[e*stride+off]
		}
	}
	copy(dst[n*stride:], src[n*stride:])
}

// Untranspose is the inverse of Transpose.
func Untranspose(dst, src []byte, stride int) {
	if stride <= 1 {
		copy(dst, src)
		return
	}
	n := len(src) / stride
	for off := 0; off < stride; off++ {
		row := src[off*n : (off+1)*n]
		for e, b := range row {
			dst[e*stride+off] = b
		}
	}
	copy(dst[n*stride:], src[n*stride:])
}

// Group transposes every plane with its stride and concatenates the results.
func Group(planes [][]byte, strides []int) []byte {
	total := 0
	for _, p := range planes {
		total += len(p)
	}
	out := make([]byte, total)
	pos := 0
	for i, p := range planes {
		Transpose(out[pos:pos+len(p)], p, strides[i])
		pos += len(p)
	}
	return out
}

// Ungroup splits buf into planes of the given sizes and reverses Group.
func Ungroup(buf []byte, sizes, strides []int) ([][]byte, error) {
	if len(sizes) != len(strides) {
		return nil, fmt.Errorf("%w: %d sizes for %d strides", ErrSize, len(sizes), len(strides))
	}
	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != len(buf) {
		return nil, fmt.Errorf("%w: planes need %d bytes, have %d", ErrSize, total, len(buf))
	}
	planes := make([][]byte, len(sizes))
	pos := 0
	for i, s := range sizes {
		planes[i] = make([]byte, s)
		Untranspose(planes[i], buf[pos:pos+s], strides[i])
		pos += s
	}
	return planes, nil
}
