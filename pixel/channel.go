// Package pixel describes the per-channel sample layout of a block.
//
// A block's uncompressed bytes are the concatenation of subsampled scanlines:
// for each pixel row of the block, and for each channel (sorted by name) that
// has samples on that row, the channel's samples on that row in increasing x.
// A channel with sampling factors (sx, sy) has a sample at absolute pixel
// (x, y) only when x mod sx == 0 and y mod sy == 0. Every codec walks blocks
// through the sections produced here rather than assuming a dense stride.
package pixel

import (
	"errors"
	"fmt"
)

// Type is the storage type of a channel's samples.
type Type int

const (
	// Uint is a 32-bit unsigned integer sample.
	Uint Type = iota
	// Half is a 16-bit IEEE 754 half-precision sample.
	Half
	// Float is a 32-bit IEEE 754 single-precision sample.
	Float
)

// Size returns the number of bytes one sample of this type occupies.
func (t Type) Size() int {
	switch t {
	case Half:
		return 2
	case Uint, Float:
		return 4
	default:
		return 0
	}
}

// String returns the name of the pixel type.
func (t Type) String() string {
	switch t {
	case Uint:
		return "uint"
	case Half:
		return "half"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Errors returned when validating channels and layouts.
var (
	ErrInvalidType     = errors.New("pixel: invalid sample type")
	ErrInvalidSampling = errors.New("pixel: sampling factors must be >= 1")
	ErrDuplicateName   = errors.New("pixel: duplicate channel name")
	ErrEmptyName       = errors.New("pixel: empty channel name")
	ErrInvalidRect     = errors.New("pixel: invalid rectangle")
	ErrBufferSize      = errors.New("pixel: buffer size does not match layout")
)

// Channel describes one channel of a block.
type Channel struct {
	Name      string
	Type      Type
	XSampling int
	YSampling int
}

// NewChannel returns a full-resolution channel.
func NewChannel(name string, t Type) Channel {
	return Channel{Name: name, Type: t, XSampling: 1, YSampling: 1}
}

// Validate checks that the channel is well formed.
func (c Channel) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.Type.Size() == 0 {
		return fmt.Errorf("%w: %d for channel %q", ErrInvalidType, int(c.Type), c.Name)
	}
	if c.XSampling < 1 || c.YSampling < 1 {
		return fmt.Errorf("%w: channel %q has (%d, %d)", ErrInvalidSampling, c.Name, c.XSampling, c.YSampling)
	}
	return nil
}

// HasSample reports whether the channel stores a sample at absolute pixel (x, y).
func (c Channel) HasSample(x, y int) bool {
	return floorMod(x, c.XSampling) == 0 && floorMod(y, c.YSampling) == 0
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

// NumSamples returns how many multiples of s lie in the closed range [a, b].
func NumSamples(s, a, b int) int {
	if b < a {
		return 0
	}
	return floorDiv(b, s) - floorDiv(a-1, s)
}

// firstSample returns the smallest multiple of s that is >= a.
func firstSample(s, a int) int {
	return -floorDiv(-a, s) * s
}
