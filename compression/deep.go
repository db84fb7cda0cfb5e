package compression

import (
	"fmt"
	"math"

	"github.com/mrjoshuak/go-exrcore/internal/xdr"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

// A deep block stores a variable number of samples per pixel. On disk it has
// two parts, compressed separately with the same method.
//
// The offset table holds one int32 per pixel: the cumulative sample count
// within the pixel's line, restarting at zero on every line.
//
//	counts [2 1 3] [0 2 1]  ->  table [2 3 6] [0 2 3]
//
// The sample data holds, for each pixel and each of its samples, one value
// per channel in channel order, little endian.

// DeepBlock is the uncompressed form of one deep block.
type DeepBlock struct {
	Width, Height int

	// Counts holds the sample count of every pixel in row-major order.
	Counts []uint32

	// Data holds the pixel-interleaved sample values.
	Data []byte
}

// DeepChunk is a compressed deep block.
type DeepChunk struct {
	Table        []byte
	Data         []byte
	UnpackedSize int // size of the sample data once decompressed
	Block        int
}

// DeepSupported reports whether m can compress deep blocks. Only lossless
// byte oriented methods can.
func DeepSupported(m Method) bool {
	switch m.Kind() {
	case KindNone, KindRLE, KindZIP, KindZSTD:
		return true
	}
	return false
}

// deepSampleSize returns the bytes one deep sample takes across channels.
func deepSampleSize(channels []pixel.Channel) (int, error) {
	n := 0
	for _, ch := range channels {
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return 0, fmt.Errorf("%w: deep channel %s is subsampled", ErrConfiguration, ch.Name)
		}
		if ch.Type.Size() == 0 {
			return 0, fmt.Errorf("%w: deep channel %s has type %v", ErrConfiguration, ch.Name, ch.Type)
		}
		n += ch.Type.Size()
	}
	return n, nil
}

// TotalSamples returns the number of samples in the block.
func (b DeepBlock) TotalSamples() int {
	n := 0
	for _, c := range b.Counts {
		n += int(c)
	}
	return n
}

// SampleOffsets returns, for every pixel, the index of its first sample,
// followed by the total sample count.
func (b DeepBlock) SampleOffsets() []int {
	offsets := make([]int, len(b.Counts)+1)
	for i, c := range b.Counts {
		offsets[i+1] = offsets[i] + int(c)
	}
	return offsets
}

// Validate checks that the counts and data agree with the block size and
// the channel list.
func (b DeepBlock) Validate(channels []pixel.Channel) error {
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: deep block %dx%d", ErrConfiguration, b.Width, b.Height)
	}
	if len(b.Counts) != b.Width*b.Height {
		return fmt.Errorf("%w: %d sample counts for %dx%d pixels", ErrConfiguration, len(b.Counts), b.Width, b.Height)
	}
	size, err := deepSampleSize(channels)
	if err != nil {
		return err
	}
	if want := b.TotalSamples() * size; len(b.Data) != want {
		return fmt.Errorf("%w: %d bytes of deep samples, want %d", ErrConfiguration, len(b.Data), want)
	}
	return nil
}

// offsetTable builds the per-line cumulative table.
func (b DeepBlock) offsetTable() ([]byte, error) {
	w := xdr.NewBufferWriter(4 * len(b.Counts))
	for y := range b.Height {
		var sum int64
		for _, c := range b.Counts[y*b.Width : (y+1)*b.Width] {
			sum += int64(c)
			if sum > math.MaxInt32 {
				return nil, fmt.Errorf("%w: more than %d samples on line %d", ErrConfiguration, math.MaxInt32, y)
			}
			w.WriteInt32(int32(sum))
		}
	}
	return w.Bytes(), nil
}

// parseOffsetTable validates a decompressed table and returns the per-pixel
// counts.
func parseOffsetTable(table []byte, width, height int) ([]uint32, error) {
	r := xdr.NewReader(table)
	counts := make([]uint32, 0, width*height)
	for y := range height {
		var prev int32
		for x := range width {
			v, err := r.ReadInt32()
			if err != nil {
				return nil, fmt.Errorf("%w: offset table truncated", ErrDeepCorrupted)
			}
			if v < prev {
				return nil, fmt.Errorf("%w: offset table decreases at (%d,%d)", ErrDeepCorrupted, x, y)
			}
			counts = append(counts, uint32(v-prev))
			prev = v
		}
	}
	return counts, nil
}

// packDeep compresses one part of a deep block. Parts that do not shrink
// are stored as they are.
func packDeep(m Method, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var data []byte
	var err error
	switch m.Kind() {
	case KindNone:
		return raw, nil
	case KindRLE:
		data = RLECompress(prepareBytes(raw))
	case KindZIP:
		data, err = ZIPCompress(prepareBytes(raw))
	case KindZSTD:
		data = ZSTDCompress(prepareBytes(raw), m.Level())
	}
	if err != nil {
		return nil, err
	}
	if len(data) >= len(raw) {
		return raw, nil
	}
	return data, nil
}

func unpackDeep(m Method, data []byte, size int) ([]byte, error) {
	if len(data) == size {
		return data, nil
	}
	if len(data) > size || m.Kind() == KindNone {
		return nil, fmt.Errorf("%w: %d bytes for %d", ErrDeepCorrupted, len(data), size)
	}
	var buf []byte
	var err error
	switch m.Kind() {
	case KindRLE:
		buf, err = RLEDecompress(data, size)
	case KindZIP:
		buf, err = ZIPDecompress(data, size)
	case KindZSTD:
		buf, err = ZSTDDecompress(data, size)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeepCorrupted, err)
	}
	return restoreBytes(buf), nil
}

// CompressDeep compresses a deep block with m.
func CompressDeep(m Method, b DeepBlock, channels []pixel.Channel) (DeepChunk, error) {
	if err := m.Validate(); err != nil {
		return DeepChunk{}, err
	}
	if !DeepSupported(m) {
		return DeepChunk{}, fmt.Errorf("%w: %v cannot compress deep data", ErrConfiguration, m)
	}
	if err := b.Validate(channels); err != nil {
		return DeepChunk{}, err
	}
	table, err := b.offsetTable()
	if err != nil {
		return DeepChunk{}, err
	}
	packedTable, err := packDeep(m, table)
	if err != nil {
		return DeepChunk{}, fmt.Errorf("%v: %w", m, err)
	}
	packedData, err := packDeep(m, b.Data)
	if err != nil {
		return DeepChunk{}, fmt.Errorf("%v: %w", m, err)
	}
	return DeepChunk{Table: packedTable, Data: packedData, UnpackedSize: len(b.Data)}, nil
}

// DecompressDeep restores a width by height deep block from c.
func DecompressDeep(m Method, c DeepChunk, width, height int, channels []pixel.Channel) (DeepBlock, error) {
	if err := m.Validate(); err != nil {
		return DeepBlock{}, err
	}
	if !DeepSupported(m) {
		return DeepBlock{}, fmt.Errorf("%w: %v cannot compress deep data", ErrConfiguration, m)
	}
	size, err := deepSampleSize(channels)
	if err != nil {
		return DeepBlock{}, err
	}
	table, err := unpackDeep(m, c.Table, 4*width*height)
	if err != nil {
		return DeepBlock{}, fmt.Errorf("offset table: %w", err)
	}
	counts, err := parseOffsetTable(table, width, height)
	if err != nil {
		return DeepBlock{}, err
	}
	b := DeepBlock{Width: width, Height: height, Counts: counts}
	if want := b.TotalSamples() * size; c.UnpackedSize != want {
		return DeepBlock{}, fmt.Errorf("%w: sample data of %d bytes, table needs %d", ErrDeepCorrupted, c.UnpackedSize, want)
	}
	if b.Data, err = unpackDeep(m, c.Data, c.UnpackedSize); err != nil {
		return DeepBlock{}, fmt.Errorf("sample data: %w", err)
	}
	return b, nil
}
