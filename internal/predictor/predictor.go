// Package predictor implements the reversible predictors applied to block
// data before entropy coding.
//
// Two predictors are provided. The byte predictor replaces each byte by its
// difference from the previous byte and is used by the RLE, ZIP and ZSTD
// codecs after byte interleaving. The half predictor rearranges the bits of
// each 16-bit half-float word so that the ordering of the unsigned words
// matches the ordering of the float values, which groups nearby values for
// the wavelet stage of PIZ.
package predictor

// Encode applies horizontal differencing to the data in place.
// The first byte remains unchanged, subsequent bytes become
// differences from their predecessor.
func Encode(data []byte) {
	n := len(data)
	if n < 2 {
		return
	}

	// Work backwards to preserve values we need
	i := n - 1
	for ; i >= 8; i -= 8 {
		data[i] = data[i] - data[i-1]
		data[i-1] = data[i-1] - data[i-2]
		data[i-2] = data[i-2] - data[i-3]
		data[i-3] = data[i-3] - data[i-4]
		data[i-4] = data[i-4] - data[i-5]
		data[i-5] = data[i-5] - data[i-6]
		data[i-6] = data[i-6] - data[i-7]
		data[i-7] = data[i-7] - data[i-8]
	}
	for ; i >= 1; i-- {
		data[i] = data[i] - data[i-1]
	}
}

// Decode reverses horizontal differencing in place.
func Decode(data []byte) {
	n := len(data)
	if n < 2 {
		return
	}

	i := 1
	for ; i+7 < n; i += 8 {
		data[i] += data[i-1]
		data[i+1] += data[i]
		data[i+2] += data[i+1]
		data[i+3] += data[i+2]
		data[i+4] += data[i+3]
		data[i+5] += data[i+4]
		data[i+6] += data[i+5]
		data[i+7] += data[i+6]
	}
	for ; i < n; i++ {
		data[i] += data[i-1]
	}
}

// OrderHalf maps a half-float bit pattern to an unsigned key whose integer
// order follows the numeric order of the half value. Positive values get the
// top bit set, negative values are complemented. The mapping is a bijection
// on all 65536 words, NaN and infinity patterns included.
func OrderHalf(h uint16) uint16 {
	if h&0x8000 != 0 {
		return ^h
	}
	return h | 0x8000
}

// UnorderHalf is the inverse of OrderHalf.
func UnorderHalf(k uint16) uint16 {
	if k&0x8000 != 0 {
		return k & 0x7fff
	}
	return ^k
}

// OrderHalfs applies OrderHalf to every word in place.
func OrderHalfs(words []uint16) {
	for i, w := range words {
		words[i] = OrderHalf(w)
	}
}

// UnorderHalfs applies UnorderHalf to every word in place.
func UnorderHalfs(words []uint16) {
	for i, w := range words {
		words[i] = UnorderHalf(w)
	}
}
