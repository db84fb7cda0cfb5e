package compression

// DWA compression stores half RGB and luminance channels as quantized 8x8
// DCT blocks in a perceptually nonlinear space, alpha channels with RLE, and
// everything else losslessly with zlib. The quality level scales the
// quantization tolerance; higher levels give smaller, less accurate blocks.
//
// Stream layout (little endian):
//
//	uint64 x dwaNumSizes    version and section sizes
//	unknown section         zlib of the prepared bytes of lossless planes
//	AC section              huffman coded AC tokens
//	DC section              zlib of delta coded DC coefficients
//	RLE section             zlib of the RLE coded alpha planes

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
	"sync"

	"github.com/mrjoshuak/go-exrcore/half"
	"github.com/mrjoshuak/go-exrcore/internal/xdr"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

const dwaVersion = 2

// Header field indices.
const (
	dwaFieldVersion = iota
	dwaUnknownUncompressedSize
	dwaUnknownCompressedSize
	dwaAcCompressedSize
	dwaDcCompressedSize
	dwaRleCompressedSize
	dwaRleUncompressedSize
	dwaRleRawSize
	dwaAcUncompressedCount
	dwaDcUncompressedCount
	dwaAcCompression
	dwaNumSizes
)

const dwaHeaderSize = dwaNumSizes * 8

const acCompressionStaticHuffman = 0

// AC token stream: a token with high byte 0xff is a run of that many zero
// coefficients, and 0xff00 ends the block. Quantized coefficients are never
// NaN, so they never collide with run tokens.
const (
	dwaRunToken = 0xff00
	dwaEOB      = 0xff00
)

// Channel schemes.
type dwaScheme int

const (
	dwaUnknown dwaScheme = iota
	dwaLossyDCT
	dwaRLE
)

// dwaClassify picks the scheme for a channel from the last component of its
// name.
func dwaClassify(ch pixel.Channel) dwaScheme {
	name := ch.Name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	switch strings.ToUpper(name) {
	case "R", "G", "B", "Y", "RY", "BY":
		if ch.Type == pixel.Half {
			return dwaLossyDCT
		}
	case "A":
		return dwaRLE
	}
	return dwaUnknown
}

// jpegQuantTable is the JPEG luminance quantization matrix, scaled by the
// quality level.
var jpegQuantTable = [64]float32{
	16, 11, 10, 16, 24, 40, 51, 61,
	12, 12, 14, 19, 26, 58, 60, 55,
	14, 13, 16, 24, 40, 57, 69, 56,
	14, 17, 22, 29, 51, 87, 80, 62,
	18, 22, 37, 56, 68, 109, 103, 77,
	24, 35, 55, 64, 81, 104, 113, 92,
	49, 64, 78, 87, 103, 121, 120, 101,
	72, 92, 95, 98, 112, 100, 103, 99,
}

// zigzag maps the i-th coefficient in scan order to its position in the
// 8x8 block.
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

var (
	dwaTablesOnce    sync.Once
	dwaToLinear      []uint16
	dwaToNonLinear   []uint16
	dctCoeff         [8][8]float32
	dwaMaxHalfFinite = float64(half.FromBits(0x7bff).Float32())
)

func initDwaTables() {
	dwaToLinear = make([]uint16, 1<<16)
	dwaToNonLinear = make([]uint16, 1<<16)
	for i := range 1 << 16 {
		dwaToLinear[i] = dwaConvert(uint16(i), false)
		dwaToNonLinear[i] = dwaConvert(uint16(i), true)
	}
	for k := range 8 {
		alpha := math.Sqrt(2.0 / 8.0)
		if k == 0 {
			alpha = 1 / math.Sqrt(8)
		}
		for n := range 8 {
			dctCoeff[k][n] = float32(alpha * math.Cos(float64(2*n+1)*float64(k)*math.Pi/16))
		}
	}
}

// dwaConvert maps a half between linear and nonlinear space. Below one the
// curve is a 2.2 gamma, above one it is logarithmic. Infinities and NaNs map
// to zero.
func dwaConvert(x uint16, toNonLinear bool) uint16 {
	if x&0x7fff == 0 || x&0x7c00 == 0x7c00 {
		return 0
	}
	f := float64(half.FromBits(x).Float32())
	sign := 1.0
	if f < 0 {
		sign, f = -1, -f
	}
	var z float64
	switch {
	case toNonLinear && f <= 1:
		z = math.Pow(f, 1/2.2)
	case toNonLinear:
		z = math.Log(f)/2.2 + 1
	case f <= 1:
		z = math.Pow(f, 2.2)
	default:
		z = math.Exp(2.2 * (f - 1))
	}
	return half.FromFloat64(sign * min(z, dwaMaxHalfFinite)).Bits()
}

func dctForward8x8(data *[64]float32) {
	var tmp [64]float32
	for row := range 8 {
		for k := range 8 {
			var s float32
			for n := range 8 {
				s += data[row*8+n] * dctCoeff[k][n]
			}
			tmp[row*8+k] = s
		}
	}
	for col := range 8 {
		for k := range 8 {
			var s float32
			for n := range 8 {
				s += tmp[n*8+col] * dctCoeff[k][n]
			}
			data[k*8+col] = s
		}
	}
}

func dctInverse8x8(data *[64]float32) {
	var tmp [64]float32
	for col := range 8 {
		for n := range 8 {
			var s float32
			for k := range 8 {
				s += data[k*8+col] * dctCoeff[k][n]
			}
			tmp[n*8+col] = s
		}
	}
	for row := range 8 {
		for n := range 8 {
			var s float32
			for k := range 8 {
				s += tmp[row*8+k] * dctCoeff[k][n]
			}
			data[row*8+n] = s
		}
	}
}

// quantizeCoefficient returns the half within tolerance of v that has the
// fewest bits set, which compresses better in the entropy stage.
func quantizeCoefficient(v, tolerance float32) uint16 {
	h := half.FromFloat32(v).Bits()
	if h&0x7c00 == 0x7c00 {
		// clamp to the largest finite half
		return h&0x8000 | 0x7bff
	}
	if tolerance <= 0 || h&0x7fff == 0 {
		return h
	}
	sign, mag := h&0x8000, h&0x7fff
	av := float32(math.Abs(float64(v)))
	best, bestBits := mag, bits.OnesCount16(mag)
	for delta := uint16(1); delta < 64; delta++ {
		for _, c := range [2]uint16{mag - delta, mag + delta} {
			if c >= 0x7c00 {
				continue
			}
			if d := half.FromBits(c).Float32() - av; d > tolerance || d < -tolerance {
				continue
			}
			if n := bits.OnesCount16(c); n < bestBits {
				best, bestBits = c, n
			}
		}
	}
	return sign | best
}

type dwaCodec struct {
	quality float32
}

// dwaPlanes splits the channels of shape by scheme.
func dwaPlanes(shape pixel.Layout) (dct, rle, unknown []int) {
	for c, ch := range shape.Channels() {
		switch dwaClassify(ch) {
		case dwaLossyDCT:
			dct = append(dct, c)
		case dwaRLE:
			rle = append(rle, c)
		default:
			unknown = append(unknown, c)
		}
	}
	return dct, rle, unknown
}

func dwaBlockCount(shape pixel.Layout, channels []int) int {
	n := 0
	for _, c := range channels {
		nx, ny := shape.SampleGrid(c)
		n += (nx + 7) / 8 * ((ny + 7) / 8)
	}
	return n
}

func planeBytes(shape pixel.Layout, channels []int) int {
	n := 0
	for _, c := range channels {
		n += shape.PlaneSize(c)
	}
	return n
}

// encodeDCTBlock transforms one 8x8 block of halves and appends its AC
// tokens to ac. It returns the DC coefficient.
func (c dwaCodec) encodeDCTBlock(block *[64]uint16, ac []uint16) (uint16, []uint16) {
	var f [64]float32
	for i, v := range block {
		f[i] = half.FromBits(dwaToNonLinear[v]).Float32()
	}
	dctForward8x8(&f)

	var q [64]uint16
	for i := range q {
		tol := float32(0)
		if c.quality > 0 {
			v := float32(math.Abs(float64(f[zigzag[i]])))
			tol = max(v*c.quality*jpegQuantTable[zigzag[i]]/16/1000, 1e-4)
		}
		q[i] = quantizeCoefficient(f[zigzag[i]], tol)
	}

	zeros := 0
	for _, v := range q[1:] {
		if v == 0 {
			zeros++
			continue
		}
		if zeros > 0 {
			ac = append(ac, dwaRunToken|uint16(zeros))
			zeros = 0
		}
		ac = append(ac, v)
	}
	if zeros > 0 {
		ac = append(ac, dwaEOB)
	}
	return q[0], ac
}

// decodeDCTBlock is the inverse of encodeDCTBlock. It returns the unread
// remainder of ac.
func decodeDCTBlock(dc uint16, ac []uint16, block *[64]uint16) ([]uint16, error) {
	var q [64]uint16
	q[0] = dc
	for i := 1; i < 64; {
		if len(ac) == 0 {
			return nil, fmt.Errorf("%w: AC tokens exhausted", ErrDWACorrupted)
		}
		tok := ac[0]
		ac = ac[1:]
		switch {
		case tok == dwaEOB:
			i = 64
		case tok&0xff00 == dwaRunToken:
			i += int(tok & 0xff)
			if i > 64 {
				return nil, fmt.Errorf("%w: zero run past end of block", ErrDWACorrupted)
			}
		default:
			q[i] = tok
			i++
		}
	}

	var f [64]float32
	for i, v := range q {
		f[zigzag[i]] = half.FromBits(v).Float32()
	}
	dctInverse8x8(&f)
	for i := range block {
		block[i] = dwaToLinear[half.FromFloat32(f[i]).Bits()]
	}
	return ac, nil
}

func zlibSection(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return ZIPCompress(raw)
}

func (c dwaCodec) encode(raw []byte, shape pixel.Layout) ([]byte, error) {
	dwaTablesOnce.Do(initDwaTables)
	planes, err := shape.Planes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	dctChans, rleChans, unknownChans := dwaPlanes(shape)

	var dc, ac []uint16
	for _, ci := range dctChans {
		p := planes[ci]
		nx, ny := shape.SampleGrid(ci)
		at := func(x, y int) uint16 {
			i := 2 * (min(y, ny-1)*nx + min(x, nx-1))
			return xdr.ByteOrder.Uint16(p[i:])
		}
		for by := 0; by < ny; by += 8 {
			for bx := 0; bx < nx; bx += 8 {
				var block [64]uint16
				for y := range 8 {
					for x := range 8 {
						block[y*8+x] = at(bx+x, by+y)
					}
				}
				var d uint16
				d, ac = c.encodeDCTBlock(&block, ac)
				dc = append(dc, d)
			}
		}
	}
	for i := len(dc) - 1; i > 0; i-- {
		dc[i] -= dc[i-1]
	}

	dcRaw := xdr.NewBufferWriter(2 * len(dc))
	dcRaw.WriteUint16s(dc)
	dcData, err := zlibSection(dcRaw.Bytes())
	if err != nil {
		return nil, err
	}
	var acData []byte
	if len(ac) > 0 {
		acData = HuffmanCompress(ac)
	}

	var rleRaw []byte
	for _, ci := range rleChans {
		rleRaw = append(rleRaw, planes[ci]...)
	}
	var rleCoded []byte
	if len(rleRaw) > 0 {
		rleCoded = RLECompress(rleRaw)
	}
	rleData, err := zlibSection(rleCoded)
	if err != nil {
		return nil, err
	}

	var unknownRaw []byte
	for _, ci := range unknownChans {
		unknownRaw = append(unknownRaw, planes[ci]...)
	}
	unknownData, err := zlibSection(prepareBytes(unknownRaw))
	if err != nil {
		return nil, err
	}

	var hdr [dwaNumSizes]uint64
	hdr[dwaFieldVersion] = dwaVersion
	hdr[dwaUnknownUncompressedSize] = uint64(len(unknownRaw))
	hdr[dwaUnknownCompressedSize] = uint64(len(unknownData))
	hdr[dwaAcCompressedSize] = uint64(len(acData))
	hdr[dwaDcCompressedSize] = uint64(len(dcData))
	hdr[dwaRleCompressedSize] = uint64(len(rleData))
	hdr[dwaRleUncompressedSize] = uint64(len(rleCoded))
	hdr[dwaRleRawSize] = uint64(len(rleRaw))
	hdr[dwaAcUncompressedCount] = uint64(len(ac))
	hdr[dwaDcUncompressedCount] = uint64(len(dc))
	hdr[dwaAcCompression] = acCompressionStaticHuffman

	w := xdr.NewBufferWriter(dwaHeaderSize + len(unknownData) + len(acData) + len(dcData) + len(rleData))
	for _, v := range hdr {
		w.WriteUint64(v)
	}
	w.WriteBytes(unknownData)
	w.WriteBytes(acData)
	w.WriteBytes(dcData)
	w.WriteBytes(rleData)
	return w.Bytes(), nil
}

func (dwaCodec) decode(data []byte, shape pixel.Layout) ([]byte, error) {
	dwaTablesOnce.Do(initDwaTables)
	r := xdr.NewReader(data)
	var hdr [dwaNumSizes]uint64
	for i := range hdr {
		v, err := r.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("%w: short header", ErrDWACorrupted)
		}
		hdr[i] = v
	}
	if hdr[dwaFieldVersion] != dwaVersion {
		return nil, fmt.Errorf("%w %d", ErrDWAUnsupported, hdr[dwaFieldVersion])
	}
	if hdr[dwaAcCompression] != acCompressionStaticHuffman {
		return nil, fmt.Errorf("%w: AC compression %d", ErrDWACorrupted, hdr[dwaAcCompression])
	}

	dctChans, rleChans, unknownChans := dwaPlanes(shape)
	nBlocks := dwaBlockCount(shape, dctChans)
	switch {
	case hdr[dwaUnknownUncompressedSize] != uint64(planeBytes(shape, unknownChans)):
		return nil, fmt.Errorf("%w: unknown section size %d", ErrDWACorrupted, hdr[dwaUnknownUncompressedSize])
	case hdr[dwaRleRawSize] != uint64(planeBytes(shape, rleChans)):
		return nil, fmt.Errorf("%w: RLE section size %d", ErrDWACorrupted, hdr[dwaRleRawSize])
	case hdr[dwaDcUncompressedCount] != uint64(nBlocks):
		return nil, fmt.Errorf("%w: %d DC coefficients for %d blocks", ErrDWACorrupted, hdr[dwaDcUncompressedCount], nBlocks)
	case hdr[dwaAcUncompressedCount] > uint64(63*nBlocks):
		return nil, fmt.Errorf("%w: %d AC tokens for %d blocks", ErrDWACorrupted, hdr[dwaAcUncompressedCount], nBlocks)
	case hdr[dwaRleUncompressedSize] > 2*hdr[dwaRleRawSize]+2:
		return nil, fmt.Errorf("%w: RLE stream size %d", ErrDWACorrupted, hdr[dwaRleUncompressedSize])
	}
	section := func(field int) ([]byte, error) {
		if hdr[field] > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: section %d truncated", ErrDWACorrupted, field)
		}
		return r.Next(int(hdr[field]))
	}
	unknownData, err := section(dwaUnknownCompressedSize)
	if err != nil {
		return nil, err
	}
	acData, err := section(dwaAcCompressedSize)
	if err != nil {
		return nil, err
	}
	dcData, err := section(dwaDcCompressedSize)
	if err != nil {
		return nil, err
	}
	rleData, err := section(dwaRleCompressedSize)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDWACorrupted, r.Len())
	}

	planes := make([][]byte, shape.NumChannels())

	unknownRaw, err := ZIPDecompress(unknownData, int(hdr[dwaUnknownUncompressedSize]))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown section: %v", ErrDWACorrupted, err)
	}
	unknownRaw = restoreBytes(unknownRaw)
	for _, ci := range unknownChans {
		planes[ci], unknownRaw = unknownRaw[:shape.PlaneSize(ci)], unknownRaw[shape.PlaneSize(ci):]
	}

	rleCoded, err := ZIPDecompress(rleData, int(hdr[dwaRleUncompressedSize]))
	if err != nil {
		return nil, fmt.Errorf("%w: RLE section: %v", ErrDWACorrupted, err)
	}
	rleRaw := make([]byte, hdr[dwaRleRawSize])
	if err := RLEDecompressTo(rleRaw, rleCoded); err != nil {
		return nil, fmt.Errorf("%w: RLE section: %v", ErrDWACorrupted, err)
	}
	for _, ci := range rleChans {
		planes[ci], rleRaw = rleRaw[:shape.PlaneSize(ci)], rleRaw[shape.PlaneSize(ci):]
	}

	dcRaw, err := ZIPDecompress(dcData, 2*nBlocks)
	if err != nil {
		return nil, fmt.Errorf("%w: DC section: %v", ErrDWACorrupted, err)
	}
	dc := make([]uint16, nBlocks)
	if err := xdr.NewReader(dcRaw).ReadUint16s(dc); err != nil {
		return nil, fmt.Errorf("%w: DC section: %v", ErrDWACorrupted, err)
	}
	for i := 1; i < len(dc); i++ {
		dc[i] += dc[i-1]
	}
	var ac []uint16
	if n := int(hdr[dwaAcUncompressedCount]); n > 0 {
		if ac, err = HuffmanDecompress(acData, n); err != nil {
			return nil, fmt.Errorf("%w: AC section: %v", ErrDWACorrupted, err)
		}
	}

	var block [64]uint16
	for _, ci := range dctChans {
		nx, ny := shape.SampleGrid(ci)
		p := make([]byte, shape.PlaneSize(ci))
		for by := 0; by < ny; by += 8 {
			for bx := 0; bx < nx; bx += 8 {
				if ac, err = decodeDCTBlock(dc[0], ac, &block); err != nil {
					return nil, err
				}
				dc = dc[1:]
				for y := 0; y < 8 && by+y < ny; y++ {
					for x := 0; x < 8 && bx+x < nx; x++ {
						xdr.ByteOrder.PutUint16(p[2*((by+y)*nx+bx+x):], block[y*8+x])
					}
				}
			}
		}
		planes[ci] = p
	}
	if len(ac) != 0 {
		return nil, fmt.Errorf("%w: %d unused AC tokens", ErrDWACorrupted, len(ac))
	}
	return shape.JoinPlanes(planes)
}
