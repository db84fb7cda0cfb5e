package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math/bits"

	"github.com/mrjoshuak/go-exrcore/internal/xdr"
	"github.com/mrjoshuak/go-exrcore/pixel"
	"github.com/mrjoshuak/go-jpeg2000"
)

// HTJ2K compression codes every 16-bit word plane of a block as its own
// lossless high-throughput JPEG 2000 codestream. Half channels give one
// plane, uint and float channels give a low-word plane and a high-word
// plane.
//
// Chunk layout (big endian, as in OpenEXR's HTJ2K chunks):
//
//	uint16  magic "HT"
//	uint32  payload length
//	uint16  plane count
//	uint16  channel index per plane
//	then per plane: uint32 codestream length, codestream

const (
	htj2kMagic      uint16 = 0x4854
	htj2kHeaderSize        = 6
	htj2kMaxLevels         = 5
)

// htj2kPlane is one 16-bit word plane of a channel.
type htj2kPlane struct {
	channel int
	nx, ny  int
	word    int // 0 for the low word, 1 for the high word
}

func htj2kPlanes(shape pixel.Layout) []htj2kPlane {
	var planes []htj2kPlane
	for c, ch := range shape.Channels() {
		nx, ny := shape.SampleGrid(c)
		for w := range ch.Type.Size() / 2 {
			planes = append(planes, htj2kPlane{channel: c, nx: nx, ny: ny, word: w})
		}
	}
	return planes
}

// htj2kResolutions picks the number of resolutions for a plane so that the
// smallest level is at least one sample wide.
func htj2kResolutions(nx, ny int) int {
	return 1 + min(htj2kMaxLevels, bits.Len(uint(min(nx, ny)))-1)
}

func writeHTJ2KHeader(buf *bytes.Buffer, channelMap []uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], htj2kMagic)
	buf.Write(b[:])
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(2+2*len(channelMap)))
	buf.Write(n[:])
	binary.BigEndian.PutUint16(b[:], uint16(len(channelMap)))
	buf.Write(b[:])
	for _, c := range channelMap {
		binary.BigEndian.PutUint16(b[:], c)
		buf.Write(b[:])
	}
}

// readHTJ2KHeader validates the chunk header and returns its size and the
// channel map.
func readHTJ2KHeader(data []byte) (int, []uint16, error) {
	if len(data) < htj2kHeaderSize+2 {
		return 0, nil, fmt.Errorf("%w: short header", ErrHTJ2KCorrupted)
	}
	if binary.BigEndian.Uint16(data) != htj2kMagic {
		return 0, nil, ErrHTJ2KInvalidMagic
	}
	payload := int(binary.BigEndian.Uint32(data[2:]))
	if payload < 2 || payload > len(data)-htj2kHeaderSize {
		return 0, nil, fmt.Errorf("%w: payload length %d", ErrHTJ2KCorrupted, payload)
	}
	count := int(binary.BigEndian.Uint16(data[6:]))
	if payload < 2+2*count {
		return 0, nil, fmt.Errorf("%w: channel map of %d entries in %d bytes", ErrHTJ2KCorrupted, count, payload)
	}
	channelMap := make([]uint16, count)
	for i := range channelMap {
		channelMap[i] = binary.BigEndian.Uint16(data[8+2*i:])
	}
	return htj2kHeaderSize + payload, channelMap, nil
}

type htj2kCodec struct {
	blockSize int
}

func (c htj2kCodec) options(nx, ny int) *jpeg2000.Options {
	return &jpeg2000.Options{
		Format:         jpeg2000.FormatJ2K,
		Lossless:       true,
		HighThroughput: true,
		HTBlockWidth:   c.blockSize,
		HTBlockHeight:  c.blockSize,
		NumResolutions: htj2kResolutions(nx, ny),
		NumLayers:      1,
	}
}

// encode returns the HTJ2K chunk only when it decodes back to raw bit for
// bit. Otherwise it returns raw itself, which is never smaller than the
// block, so Compress stores the block uncompressed.
func (c htj2kCodec) encode(raw []byte, shape pixel.Layout) ([]byte, error) {
	data, err := c.encodePlanes(raw, shape)
	if err != nil {
		return nil, err
	}
	if len(data) >= len(raw) {
		return data, nil
	}
	if got, err := c.decode(data, shape); err != nil || !bytes.Equal(got, raw) {
		return raw, nil
	}
	return data, nil
}

func (c htj2kCodec) encodePlanes(raw []byte, shape pixel.Layout) ([]byte, error) {
	planes, err := shape.Planes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	hp := htj2kPlanes(shape)
	channelMap := make([]uint16, len(hp))
	for i, p := range hp {
		channelMap[i] = uint16(p.channel)
	}

	var out bytes.Buffer
	writeHTJ2KHeader(&out, channelMap)
	var stream bytes.Buffer
	for _, p := range hp {
		stream.Reset()
		if p.nx > 0 && p.ny > 0 {
			size := shape.Channels()[p.channel].Type.Size()
			src := planes[p.channel]
			img := image.NewGray16(image.Rect(0, 0, p.nx, p.ny))
			for i := range p.nx * p.ny {
				v := xdr.ByteOrder.Uint16(src[i*size+2*p.word:])
				img.SetGray16(i%p.nx, i/p.nx, color.Gray16{Y: v})
			}
			if err := jpeg2000.Encode(&stream, img, c.options(p.nx, p.ny)); err != nil {
				return nil, fmt.Errorf("%w: channel %d: %v", ErrConfiguration, p.channel, err)
			}
		}
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(stream.Len()))
		out.Write(n[:])
		out.Write(stream.Bytes())
	}
	return out.Bytes(), nil
}

func (htj2kCodec) decode(data []byte, shape pixel.Layout) ([]byte, error) {
	headerSize, channelMap, err := readHTJ2KHeader(data)
	if err != nil {
		return nil, err
	}
	hp := htj2kPlanes(shape)
	if len(channelMap) != len(hp) {
		return nil, fmt.Errorf("%w: %d planes, want %d", ErrHTJ2KCorrupted, len(channelMap), len(hp))
	}
	planes := make([][]byte, shape.NumChannels())
	for c := range planes {
		planes[c] = make([]byte, shape.PlaneSize(c))
	}

	rest := data[headerSize:]
	for i, p := range hp {
		if int(channelMap[i]) != p.channel {
			return nil, fmt.Errorf("%w: plane %d maps to channel %d", ErrHTJ2KCorrupted, i, channelMap[i])
		}
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: plane %d truncated", ErrHTJ2KCorrupted, i)
		}
		n := int(binary.BigEndian.Uint32(rest))
		rest = rest[4:]
		if n > len(rest) {
			return nil, fmt.Errorf("%w: plane %d truncated", ErrHTJ2KCorrupted, i)
		}
		stream := rest[:n]
		rest = rest[n:]
		if p.nx == 0 || p.ny == 0 {
			if n != 0 {
				return nil, fmt.Errorf("%w: data for empty plane %d", ErrHTJ2KCorrupted, i)
			}
			continue
		}

		img, err := jpeg2000.Decode(bytes.NewReader(stream))
		if err != nil {
			return nil, fmt.Errorf("%w: plane %d: %v", ErrHTJ2KCorrupted, i, err)
		}
		b := img.Bounds()
		if b.Dx() != p.nx || b.Dy() != p.ny {
			return nil, fmt.Errorf("%w: plane %d is %dx%d, want %dx%d", ErrHTJ2KCorrupted, i, b.Dx(), b.Dy(), p.nx, p.ny)
		}
		size := shape.Channels()[p.channel].Type.Size()
		dst := planes[p.channel]
		gray, _ := img.(*image.Gray16)
		for y := range p.ny {
			for x := range p.nx {
				var v uint16
				if gray != nil {
					v = gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y
				} else {
					v = color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
				}
				xdr.ByteOrder.PutUint16(dst[(y*p.nx+x)*size+2*p.word:], v)
			}
		}
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrHTJ2KCorrupted, len(rest))
	}
	return shape.JoinPlanes(planes)
}
