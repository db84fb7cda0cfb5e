package compression

import (
	"fmt"

	"github.com/mrjoshuak/go-exrcore/pixel"
)

// B44 compression: every half channel plane is cut into 4x4 blocks, padded
// by repeating the last row and column, and each block is stored in 14
// bytes (or 3 bytes for a uniform block when flat fields are enabled).
// Uint and float planes are stored as they are. Infinities and NaNs become
// zero.

const (
	b44BlockSize = 14
	b44FlatSize  = 3
	b44Bias      = 0x20
	b44FlatMark  = 13 << 2
)

// b44Ordered maps a half to an unsigned key ordered like the half values.
func b44Ordered(h uint16) uint16 {
	switch {
	case h&0x7c00 == 0x7c00:
		return 0x8000
	case h&0x8000 != 0:
		return ^h
	}
	return h | 0x8000
}

func b44Unordered(k uint16) uint16 {
	if k&0x8000 != 0 {
		return k & 0x7fff
	}
	return ^k
}

// b44Chain lists the 15 differences packed after the first sample, as pairs
// of sample indices.
var b44Chain = [15][2]int{
	{0, 4}, {4, 8}, {8, 12},
	{0, 1}, {4, 5}, {8, 9}, {12, 13},
	{1, 2}, {5, 6}, {9, 10}, {13, 14},
	{2, 3}, {6, 7}, {10, 11}, {14, 15},
}

// packB44 packs 16 halves into b and returns the number of bytes used.
func packB44(s *[16]uint16, b []byte, flatFields bool) int {
	var t [16]uint16
	tMax := uint16(0)
	for i, v := range s {
		t[i] = b44Ordered(v)
		tMax = max(tMax, t[i])
	}

	var d [16]int
	var r [15]int
	shift := uint(0)
	for {
		a := (1 << shift) - 1
		for i := range t {
			x := (int(tMax) - int(t[i])) << 1
			d[i] = (x + a + ((x >> (shift + 1)) & 1)) >> (shift + 1)
		}
		ok := true
		for i, p := range b44Chain {
			r[i] = d[p[0]] - d[p[1]] + b44Bias
			if r[i] < 0 || r[i] > 0x3f {
				ok = false
			}
		}
		if ok {
			break
		}
		shift++
	}

	if flatFields {
		flat := true
		for _, v := range r {
			flat = flat && v == b44Bias
		}
		if flat {
			b[0] = byte(t[0] >> 8)
			b[1] = byte(t[0])
			b[2] = 0xfc
			return b44FlatSize
		}
	}

	t0 := tMax - uint16(d[0]<<shift)
	b[0] = byte(t0 >> 8)
	b[1] = byte(t0)
	b[2] = byte(int(shift)<<2 | r[0]>>4)
	b[3] = byte(r[0]<<4 | r[1]>>2)
	b[4] = byte(r[1]<<6 | r[2])
	b[5] = byte(r[3]<<2 | r[4]>>4)
	b[6] = byte(r[4]<<4 | r[5]>>2)
	b[7] = byte(r[5]<<6 | r[6])
	b[8] = byte(r[7]<<2 | r[8]>>4)
	b[9] = byte(r[8]<<4 | r[9]>>2)
	b[10] = byte(r[9]<<6 | r[10])
	b[11] = byte(r[11]<<2 | r[12]>>4)
	b[12] = byte(r[12]<<4 | r[13]>>2)
	b[13] = byte(r[13]<<6 | r[14])
	return b44BlockSize
}

// unpack14 is the inverse of the 14-byte form of packB44.
func unpack14(b []byte, s *[16]uint16) {
	r := [15]uint32{
		uint32(b[2])<<4 | uint32(b[3])>>4,
		uint32(b[3])<<2 | uint32(b[4])>>6,
		uint32(b[4]),
		uint32(b[5]) >> 2,
		uint32(b[5])<<4 | uint32(b[6])>>4,
		uint32(b[6])<<2 | uint32(b[7])>>6,
		uint32(b[7]),
		uint32(b[8]) >> 2,
		uint32(b[8])<<4 | uint32(b[9])>>4,
		uint32(b[9])<<2 | uint32(b[10])>>6,
		uint32(b[10]),
		uint32(b[11]) >> 2,
		uint32(b[11])<<4 | uint32(b[12])>>4,
		uint32(b[12])<<2 | uint32(b[13])>>6,
		uint32(b[13]),
	}
	shift := uint(b[2] >> 2)
	bias := uint16(b44Bias) << shift

	s[0] = uint16(b[0])<<8 | uint16(b[1])
	for i, p := range b44Chain {
		s[p[1]] = s[p[0]] + uint16((r[i]&0x3f)<<shift) - bias
	}
	for i := range s {
		s[i] = b44Unordered(s[i])
	}
}

// unpack3 expands a uniform block.
func unpack3(b []byte, s *[16]uint16) {
	v := b44Unordered(uint16(b[0])<<8 | uint16(b[1]))
	for i := range s {
		s[i] = v
	}
}

type b44Codec struct {
	flat bool
}

func (c b44Codec) encode(raw []byte, shape pixel.Layout) ([]byte, error) {
	planes, err := shape.Planes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	out := make([]byte, 0, len(raw))
	var block [b44BlockSize]byte
	for ci, ch := range shape.Channels() {
		p := planes[ci]
		if ch.Type != pixel.Half {
			out = append(out, p...)
			continue
		}
		nx, ny := shape.SampleGrid(ci)
		at := func(x, y int) uint16 {
			i := 2 * (min(y, ny-1)*nx + min(x, nx-1))
			return uint16(p[i]) | uint16(p[i+1])<<8
		}
		for y := 0; y < ny; y += 4 {
			for x := 0; x < nx; x += 4 {
				var s [16]uint16
				for by := range 4 {
					for bx := range 4 {
						s[by*4+bx] = at(x+bx, y+by)
					}
				}
				n := packB44(&s, block[:], c.flat)
				out = append(out, block[:n]...)
			}
		}
	}
	return out, nil
}

func (b44Codec) decode(data []byte, shape pixel.Layout) ([]byte, error) {
	planes := make([][]byte, shape.NumChannels())
	in := 0
	for ci, ch := range shape.Channels() {
		size := shape.PlaneSize(ci)
		if ch.Type != pixel.Half {
			if in+size > len(data) {
				return nil, fmt.Errorf("%w: %s plane truncated", ErrB44Corrupted, ch.Name)
			}
			planes[ci] = data[in : in+size]
			in += size
			continue
		}
		nx, ny := shape.SampleGrid(ci)
		p := make([]byte, size)
		var s [16]uint16
		for y := 0; y < ny; y += 4 {
			for x := 0; x < nx; x += 4 {
				if in+b44FlatSize > len(data) {
					return nil, fmt.Errorf("%w: %s block at (%d,%d) truncated", ErrB44Corrupted, ch.Name, x, y)
				}
				if data[in+2] >= b44FlatMark {
					unpack3(data[in:], &s)
					in += b44FlatSize
				} else {
					if in+b44BlockSize > len(data) {
						return nil, fmt.Errorf("%w: %s block at (%d,%d) truncated", ErrB44Corrupted, ch.Name, x, y)
					}
					unpack14(data[in:], &s)
					in += b44BlockSize
				}
				for by := 0; by < 4 && y+by < ny; by++ {
					for bx := 0; bx < 4 && x+bx < nx; bx++ {
						i := 2 * ((y+by)*nx + x + bx)
						v := s[by*4+bx]
						p[i], p[i+1] = byte(v), byte(v>>8)
					}
				}
			}
		}
		planes[ci] = p
	}
	if in != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrB44Corrupted, len(data)-in)
	}
	return shape.JoinPlanes(planes)
}
