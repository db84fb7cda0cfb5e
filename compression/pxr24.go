package compression

import (
	"fmt"
	"math"

	"github.com/mrjoshuak/go-exrcore/internal/xdr"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

// PXR24 compression: float samples are rounded to 24 bits, then every
// scanline section is horizontally differenced and split into byte planes
// (most significant first) before zlib. Half and uint samples are lossless.

// floatToFloat24 rounds a float32 bit pattern to 24 bits: sign, exponent and
// the top 15 mantissa bits. NaN stays NaN and rounding never overflows into
// infinity.
func floatToFloat24(bits uint32) uint32 {
	s := bits & 0x80000000
	e := bits & 0x7f800000
	m := bits & 0x007fffff

	if e == 0x7f800000 {
		if m != 0 {
			m >>= 8
			i := (e >> 8) | m
			if m == 0 {
				i |= 1
			}
			return (s >> 8) | i
		}
		return (s >> 8) | (e >> 8)
	}

	i := ((e | m) + (m & 0x00000080)) >> 8
	if i >= 0x7f8000 {
		i = (e | m) >> 8
	}
	return (s >> 8) | i
}

// pxr24Width returns the number of bytes a sample of type t occupies in the
// plane representation.
func pxr24Width(t pixel.Type) int {
	if t == pixel.Float {
		return 3
	}
	return t.Size()
}

func pxr24ScratchSize(shape pixel.Layout) int {
	n := 0
	for c, ch := range shape.Channels() {
		nx, ny := shape.SampleGrid(c)
		n += nx * ny * pxr24Width(ch.Type)
	}
	return n
}

// pxr24Load reads one sample in its plane representation.
func pxr24Load(t pixel.Type, b []byte) uint32 {
	switch t {
	case pixel.Half:
		return uint32(xdr.ByteOrder.Uint16(b))
	case pixel.Float:
		return floatToFloat24(xdr.ByteOrder.Uint32(b))
	}
	return xdr.ByteOrder.Uint32(b)
}

func pxr24Store(t pixel.Type, b []byte, v uint32) {
	switch t {
	case pixel.Half:
		xdr.ByteOrder.PutUint16(b, uint16(v))
	case pixel.Float:
		xdr.ByteOrder.PutUint32(b, v<<8)
	default:
		xdr.ByteOrder.PutUint32(b, v)
	}
}

type pxr24Codec struct{}

func (pxr24Codec) encode(raw []byte, shape pixel.Layout) ([]byte, error) {
	lines, err := shape.NewLines(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	scratch := make([]byte, pxr24ScratchSize(shape))
	out := 0
	chs := shape.Channels()
	for i := range lines.Len() {
		line := lines.Line(i)
		t := chs[lines.Section(i).Channel].Type
		size, nb := t.Size(), pxr24Width(t)
		w := lines.Section(i).Count
		var prev uint32
		for x := 0; x < w; x++ {
			v := pxr24Load(t, line[x*size:])
			diff := v - prev
			prev = v
			for b := 0; b < nb; b++ {
				scratch[out+b*w+x] = byte(diff >> (8 * (nb - 1 - b)))
			}
		}
		out += w * nb
	}
	return ZIPCompress(scratch)
}

func (pxr24Codec) decode(data []byte, shape pixel.Layout) ([]byte, error) {
	scratch, err := ZIPDecompress(data, pxr24ScratchSize(shape))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPXR24Corrupted, err)
	}
	result := make([]byte, shape.RawSize())
	lines, err := shape.NewLines(result)
	if err != nil {
		return nil, err
	}
	in := 0
	chs := shape.Channels()
	for i := range lines.Len() {
		line := lines.Line(i)
		t := chs[lines.Section(i).Channel].Type
		size, nb := t.Size(), pxr24Width(t)
		w := lines.Section(i).Count
		var v uint32
		for x := 0; x < w; x++ {
			var diff uint32
			for b := 0; b < nb; b++ {
				diff = diff<<8 | uint32(scratch[in+b*w+x])
			}
			v += diff
			if t == pixel.Float {
				v &= 0xffffff
			}
			pxr24Store(t, line[x*size:], v)
		}
		in += w * nb
	}
	return result, nil
}

// Float24 returns f rounded the way PXR24 stores it.
func Float24(f float32) float32 {
	return math.Float32frombits(floatToFloat24(math.Float32bits(f)) << 8)
}
