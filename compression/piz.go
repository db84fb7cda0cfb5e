package compression

import (
	"fmt"
	"sync"

	"github.com/mrjoshuak/go-exrcore/internal/predictor"
	"github.com/mrjoshuak/go-exrcore/internal/xdr"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

// PIZ compression: wavelet transform followed by Huffman coding.
//
// The block is viewed as 16-bit words. Half channels contribute one word per
// sample, rearranged with predictor.OrderHalf; 32-bit channels contribute a
// plane of low words followed by a plane of high words. The set of distinct
// words is recorded in a bitmap and every word is replaced by its rank in
// that set, which keeps the wavelet input small. Each plane is then
// wavelet-transformed on its own sample grid and the whole word buffer is
// Huffman coded.
//
// Stream layout (little-endian):
//
//	uint16  first non-zero bitmap byte
//	uint16  last non-zero bitmap byte
//	bytes   bitmap bytes in that range
//	uint32  length of the Huffman stream
//	bytes   Huffman stream

const pizBitmapSize = 1 << 16 / 8

type pizWork struct {
	bitmap []byte
	lut    []uint16
}

var pizWorkPool = sync.Pool{
	New: func() any {
		return &pizWork{
			bitmap: make([]byte, pizBitmapSize),
			lut:    make([]uint16, 1<<16),
		}
	},
}

type pizCodec struct{}

// pizPlane locates one wavelet plane in the word buffer.
type pizPlane struct {
	start  int
	nx, ny int
	half   bool
}

func (p pizPlane) words(buf []uint16) []uint16 {
	return buf[p.start : p.start+p.nx*p.ny]
}

func pizPlanes(shape pixel.Layout) ([]pizPlane, int) {
	var planes []pizPlane
	n := 0
	for c, ch := range shape.Channels() {
		nx, ny := shape.SampleGrid(c)
		for range ch.Type.Size() / 2 {
			planes = append(planes, pizPlane{start: n, nx: nx, ny: ny, half: ch.Type == pixel.Half})
			n += nx * ny
		}
	}
	return planes, n
}

// pizWordsFromBlock splits a block into word planes.
func pizWordsFromBlock(raw []byte, shape pixel.Layout) ([]uint16, []pizPlane, error) {
	channels, err := shape.Planes(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	planes, n := pizPlanes(shape)
	words := make([]uint16, n)
	pi := 0
	for c, ch := range shape.Channels() {
		src := channels[c]
		stride := ch.Type.Size()
		for w := 0; w < stride/2; w++ {
			dst := planes[pi].words(words)
			for i := range dst {
				dst[i] = xdr.ByteOrder.Uint16(src[i*stride+2*w:])
			}
			if planes[pi].half {
				predictor.OrderHalfs(dst)
			}
			pi++
		}
	}
	return words, planes, nil
}

// pizBlockFromWords is the inverse of pizWordsFromBlock. It consumes words.
func pizBlockFromWords(words []uint16, planes []pizPlane, shape pixel.Layout) ([]byte, error) {
	channels := make([][]byte, shape.NumChannels())
	pi := 0
	for c, ch := range shape.Channels() {
		stride := ch.Type.Size()
		dst := make([]byte, shape.PlaneSize(c))
		for w := 0; w < stride/2; w++ {
			src := planes[pi].words(words)
			if planes[pi].half {
				predictor.UnorderHalfs(src)
			}
			for i, v := range src {
				xdr.ByteOrder.PutUint16(dst[i*stride+2*w:], v)
			}
			pi++
		}
		channels[c] = dst
	}
	return shape.JoinPlanes(channels)
}

// forwardLUT maps every word present in bitmap to its rank and returns the
// highest rank.
func forwardLUT(bitmap []byte, lut []uint16) uint16 {
	k := 0
	for i := range 1 << 16 {
		if bitmap[i>>3]&(1<<(i&7)) != 0 {
			lut[i] = uint16(k)
			k++
		} else {
			lut[i] = 0
		}
	}
	return uint16(k - 1)
}

// reverseLUT maps ranks back to words and returns the number of words
// present in bitmap.
func reverseLUT(bitmap []byte, lut []uint16) int {
	k := 0
	for i := range 1 << 16 {
		if bitmap[i>>3]&(1<<(i&7)) != 0 {
			lut[k] = uint16(i)
			k++
		}
	}
	return k
}

func applyLUT(lut []uint16, data []uint16) {
	for i, v := range data {
		data[i] = lut[v]
	}
}

func (pizCodec) encode(raw []byte, shape pixel.Layout) ([]byte, error) {
	words, planes, err := pizWordsFromBlock(raw, shape)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, nil
	}

	work := pizWorkPool.Get().(*pizWork)
	defer pizWorkPool.Put(work)
	clear(work.bitmap)

	for _, v := range words {
		work.bitmap[v>>3] |= 1 << (v & 7)
	}
	maxValue := forwardLUT(work.bitmap, work.lut)
	applyLUT(work.lut, words)

	for _, p := range planes {
		Wav2DEncode(p.words(words), p.nx, p.ny, maxValue)
	}

	minNonZero, maxNonZero := pizBitmapSize-1, 0
	for i, b := range work.bitmap {
		if b != 0 {
			minNonZero = min(minNonZero, i)
			maxNonZero = max(maxNonZero, i)
		}
	}

	huf := HuffmanCompress(words)

	w := xdr.NewBufferWriter(8 + maxNonZero - minNonZero + 1 + len(huf))
	w.WriteUint16(uint16(minNonZero))
	w.WriteUint16(uint16(maxNonZero))
	w.WriteBytes(work.bitmap[minNonZero : maxNonZero+1])
	w.WriteUint32(uint32(len(huf)))
	w.WriteBytes(huf)
	return w.Bytes(), nil
}

func (pizCodec) decode(data []byte, shape pixel.Layout) ([]byte, error) {
	planes, n := pizPlanes(shape)
	if n == 0 {
		if len(data) != 0 {
			return nil, fmt.Errorf("%w: %d bytes for an empty block", ErrPIZCorrupted, len(data))
		}
		return []byte{}, nil
	}

	r := xdr.NewReader(data)
	minNonZero, err := r.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: bitmap range", ErrPIZTruncated)
	}
	maxNonZero, err := r.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: bitmap range", ErrPIZTruncated)
	}
	if minNonZero > maxNonZero || int(maxNonZero) >= pizBitmapSize {
		return nil, fmt.Errorf("%w: bitmap range [%d, %d]", ErrPIZCorrupted, minNonZero, maxNonZero)
	}
	bits, err := r.Next(int(maxNonZero-minNonZero) + 1)
	if err != nil {
		return nil, fmt.Errorf("%w: bitmap", ErrPIZTruncated)
	}

	work := pizWorkPool.Get().(*pizWork)
	defer pizWorkPool.Put(work)
	clear(work.bitmap)
	copy(work.bitmap[minNonZero:], bits)

	unique := reverseLUT(work.bitmap, work.lut)
	if unique == 0 {
		return nil, fmt.Errorf("%w: empty bitmap", ErrPIZCorrupted)
	}
	maxValue := uint16(unique - 1)

	hufLen, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: huffman length", ErrPIZTruncated)
	}
	huf, err := r.Next(int(hufLen))
	if err != nil {
		return nil, fmt.Errorf("%w: huffman stream of %d bytes, %d available", ErrPIZTruncated, hufLen, r.Len())
	}

	words := make([]uint16, n)
	if err := huffmanDecompressTo(huf, words); err != nil {
		return nil, err
	}

	for _, p := range planes {
		Wav2DDecode(p.words(words), p.nx, p.ny, maxValue)
	}
	for i, v := range words {
		if int(v) >= unique {
			return nil, fmt.Errorf("%w: rank %d outside %d distinct values", ErrPIZCorrupted, v, unique)
		}
		words[i] = work.lut[v]
	}

	return pizBlockFromWords(words, planes, shape)
}
