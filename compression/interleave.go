package compression

import "github.com/mrjoshuak/go-exrcore/internal/predictor"

// Byte preparation shared by the RLE and ZIP codecs: the block is split
// into its even-indexed and odd-indexed bytes, which separates the low and
// high bytes of 16-bit samples, and the result is delta coded.
//
//	[A0, A1, B0, B1, C0, C1] -> [A0, B0, C0, A1, B1, C1]

// Interleave writes the even-indexed bytes of src followed by the
// odd-indexed ones into dst. dst must be as long as src.
func Interleave(dst, src []byte) {
	half := (len(src) + 1) / 2
	for i := 0; i < half; i++ {
		dst[i] = src[2*i]
	}
	for i := 0; i < len(src)-half; i++ {
		dst[half+i] = src[2*i+1]
	}
}

// Deinterleave is the inverse of Interleave.
func Deinterleave(dst, src []byte) {
	half := (len(src) + 1) / 2
	for i := 0; i < half; i++ {
		dst[2*i] = src[i]
	}
	for i := 0; i < len(src)-half; i++ {
		dst[2*i+1] = src[half+i]
	}
}

// prepareBytes returns the interleaved, delta coded form of raw.
func prepareBytes(raw []byte) []byte {
	buf := make([]byte, len(raw))
	Interleave(buf, raw)
	predictor.Encode(buf)
	return buf
}

// restoreBytes reverses prepareBytes. buf is overwritten.
func restoreBytes(buf []byte) []byte {
	predictor.Decode(buf)
	out := make([]byte, len(buf))
	Deinterleave(out, buf)
	return out
}
