package compression

import (
	"fmt"

	"github.com/mrjoshuak/go-exrcore/pixel"
)

const (
	rleMinRunLength = 3
	rleMaxRunLength = 127
)

// RLECompress run-length encodes src with signed counts:
//   - a negative count -n is followed by one byte repeated n+1 times
//   - a non-negative count n is followed by n+1 literal bytes
//
// For example:
//
//	[A, A, A, A, B, C, D] -> [-3, A, 2, B, C, D]
func RLECompress(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}

	dst := make([]byte, 0, len(src)+len(src)/2)

	i := 0
	for i < len(src) {
		val := src[i]
		runEnd := i + 1
		for runEnd < len(src) && src[runEnd] == val && runEnd-i < rleMaxRunLength {
			runEnd++
		}
		if runLength := runEnd - i; runLength >= rleMinRunLength {
			dst = append(dst, byte(-(runLength - 1)), val)
			i = runEnd
			continue
		}

		literalStart := i
		for i < len(src) && i-literalStart < rleMaxRunLength {
			if i+rleMinRunLength <= len(src) && src[i+1] == src[i] && src[i+2] == src[i] {
				break
			}
			i++
		}
		dst = append(dst, byte(i-literalStart-1))
		dst = append(dst, src[literalStart:i]...)
	}

	return dst
}

// RLEDecompressTo decodes src into dst, which must be exactly the size of
// the decoded data.
func RLEDecompressTo(dst, src []byte) error {
	pos := 0
	for i := 0; i < len(src); {
		count := int(int8(src[i]))
		i++

		if count < 0 {
			n := -count + 1
			if i >= len(src) {
				return fmt.Errorf("%w: run value missing at byte %d", ErrRLECorrupted, i)
			}
			if pos+n > len(dst) {
				return ErrRLEOverflow
			}
			val := src[i]
			i++
			for end := pos + n; pos < end; pos++ {
				dst[pos] = val
			}
			continue
		}

		n := count + 1
		if i+n > len(src) {
			return fmt.Errorf("%w: literal of %d bytes at byte %d", ErrRLECorrupted, n, i)
		}
		if pos+n > len(dst) {
			return ErrRLEOverflow
		}
		copy(dst[pos:], src[i:i+n])
		pos += n
		i += n
	}

	if pos != len(dst) {
		return fmt.Errorf("%w: decoded %d of %d bytes", ErrRLECorrupted, pos, len(dst))
	}
	return nil
}

// RLEDecompress decodes src, which must expand to exactly expectedSize bytes.
func RLEDecompress(src []byte, expectedSize int) ([]byte, error) {
	dst := make([]byte, expectedSize)
	if err := RLEDecompressTo(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}

type rleCodec struct{}

func (rleCodec) encode(raw []byte, _ pixel.Layout) ([]byte, error) {
	return RLECompress(prepareBytes(raw)), nil
}

func (rleCodec) decode(data []byte, shape pixel.Layout) ([]byte, error) {
	buf, err := RLEDecompress(data, shape.RawSize())
	if err != nil {
		return nil, err
	}
	return restoreBytes(buf), nil
}
