package compression

// Integer Haar wavelet used by PIZ.
//
// Values are transformed pairwise into an average and a difference. Two
// lifting variants exist: the 14-bit variant uses plain signed arithmetic and
// is exact when every input is below 1<<14; the 16-bit variant works modulo
// 1<<16 with offsets and is exact for any input. The caller selects the
// variant from the largest value in the block.

const (
	wavNBits    = 16
	wavAOffset  = 1 << (wavNBits - 1)
	wavMOffset  = 1 << (wavNBits - 1)
	wavModMask  = (1 << wavNBits) - 1
	wavMaxFor14 = 1 << 14
)

func wenc14(a, b uint16) (l, h uint16) {
	as := int(int16(a))
	bs := int(int16(b))

	ms := (as + bs) >> 1
	ds := as - bs

	return uint16(int16(ms)), uint16(int16(ds))
}

func wdec14(l, h uint16) (a, b uint16) {
	ls := int(int16(l))
	hs := int(int16(h))

	ai := ls + (hs & 1) + (hs >> 1)
	bi := ai - hs

	return uint16(int16(ai)), uint16(int16(bi))
}

func wenc16(a, b uint16) (l, h uint16) {
	ao := (int(a) + wavAOffset) & wavModMask
	m := (ao + int(b)) >> 1
	d := ao - int(b)

	if d < 0 {
		m = (m + wavMOffset) & wavModMask
	}
	d &= wavModMask

	return uint16(m), uint16(d)
}

func wdec16(l, h uint16) (a, b uint16) {
	m := int(l)
	d := int(h)
	bb := (m - (d >> 1)) & wavModMask
	aa := (d + bb - wavAOffset) & wavModMask
	return uint16(aa), uint16(bb)
}

// Wav2DEncode applies the forward 2D transform in place to an nx by ny plane
// stored row by row. Each pass combines 2x2 groups of samples spaced p apart
// and doubles p, until 2p exceeds the smaller dimension. When a dimension has
// the p bit set, the last column (or row) of the pass has no partner on that
// axis and is combined in the other direction only.
// maxValue is the largest value in data and selects the lifting variant.
func Wav2DEncode(data []uint16, nx, ny int, maxValue uint16) {
	if nx <= 0 || ny <= 0 || len(data) < nx*ny {
		return
	}
	enc := wenc16
	if maxValue < wavMaxFor14 {
		enc = wenc14
	}

	n := min(nx, ny)
	for p, p2 := 1, 2; p2 <= n; p, p2 = p2, p2<<1 {
		oy1 := nx * p
		oy2 := nx * p2

		for py := 0; py <= nx*(ny-p2); py += oy2 {
			for px := py; px <= py+nx-p2; px += p2 {
				p01 := px + p
				p10 := px + oy1
				p11 := p10 + p

				i00, i01 := enc(data[px], data[p01])
				i10, i11 := enc(data[p10], data[p11])
				data[px], data[p10] = enc(i00, i10)
				data[p01], data[p11] = enc(i01, i11)
			}

			if nx&p != 0 {
				px := py + nx/p2*p2
				p10 := px + oy1
				data[px], data[p10] = enc(data[px], data[p10])
			}
		}

		if ny&p != 0 {
			py := ny / p2 * oy2
			for px := py; px <= py+nx-p2; px += p2 {
				p01 := px + p
				data[px], data[p01] = enc(data[px], data[p01])
			}
		}
	}
}

// Wav2DDecode inverts Wav2DEncode in place. maxValue must be the value passed
// to the encoder.
func Wav2DDecode(data []uint16, nx, ny int, maxValue uint16) {
	if nx <= 0 || ny <= 0 || len(data) < nx*ny {
		return
	}
	dec := wdec16
	if maxValue < wavMaxFor14 {
		dec = wdec14
	}

	n := min(nx, ny)
	p := 1
	for p <= n {
		p <<= 1
	}
	p >>= 1
	p2 := p
	p >>= 1

	for ; p >= 1; p2, p = p, p>>1 {
		oy1 := nx * p
		oy2 := nx * p2

		for py := 0; py <= nx*(ny-p2); py += oy2 {
			for px := py; px <= py+nx-p2; px += p2 {
				p01 := px + p
				p10 := px + oy1
				p11 := p10 + p

				i00, i10 := dec(data[px], data[p10])
				i01, i11 := dec(data[p01], data[p11])
				data[px], data[p01] = dec(i00, i01)
				data[p10], data[p11] = dec(i10, i11)
			}

			if nx&p != 0 {
				px := py + nx/p2*p2
				p10 := px + oy1
				data[px], data[p10] = dec(data[px], data[p10])
			}
		}

		if ny&p != 0 {
			py := ny / p2 * oy2
			for px := py; px <= py+nx-p2; px += p2 {
				p01 := px + p
				data[px], data[p01] = dec(data[px], data[p01])
			}
		}
	}
}
