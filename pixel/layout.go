package pixel

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Rect is an absolute pixel rectangle. X and Y may be negative.
type Rect struct {
	X, Y          int
	Width, Height int
}

// MaxX returns the last column inside the rectangle.
func (r Rect) MaxX() int { return r.X + r.Width - 1 }

// MaxY returns the last row inside the rectangle.
func (r Rect) MaxY() int { return r.Y + r.Height - 1 }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)+%dx%d", r.X, r.Y, r.Width, r.Height)
}

// Layout is the shape of one block: its pixel rectangle and its channels
// sorted by name. A Layout is immutable and safe to share between goroutines.
type Layout struct {
	rect     Rect
	channels []Channel
	// per-channel sample grid, precomputed
	nx, ny []int
	x0     []int
	size   int
}

// NewLayout validates the channels and returns the layout of a block covering rect.
// The channels are copied and sorted by name.
func NewLayout(rect Rect, channels []Channel) (Layout, error) {
	if rect.Width < 0 || rect.Height < 0 {
		return Layout{}, fmt.Errorf("%w: %v", ErrInvalidRect, rect)
	}
	chs := slices.Clone(channels)
	slices.SortFunc(chs, func(a, b Channel) int { return strings.Compare(a.Name, b.Name) })
	for i, c := range chs {
		if err := c.Validate(); err != nil {
			return Layout{}, err
		}
		if i > 0 && chs[i-1].Name == c.Name {
			return Layout{}, fmt.Errorf("%w: %q", ErrDuplicateName, c.Name)
		}
	}

	l := Layout{
		rect:     rect,
		channels: chs,
		nx:       make([]int, len(chs)),
		ny:       make([]int, len(chs)),
		x0:       make([]int, len(chs)),
	}
	for i, c := range chs {
		if rect.Empty() {
			continue
		}
		l.nx[i] = NumSamples(c.XSampling, rect.X, rect.MaxX())
		l.ny[i] = NumSamples(c.YSampling, rect.Y, rect.MaxY())
		l.x0[i] = firstSample(c.XSampling, rect.X)
		l.size += l.nx[i] * l.ny[i] * c.Type.Size()
	}
	return l, nil
}

// MustLayout is like NewLayout but panics on error. Intended for tests and
// static tables.
func MustLayout(rect Rect, channels []Channel) Layout {
	l, err := NewLayout(rect, channels)
	if err != nil {
		panic(err)
	}
	return l
}

// Rect returns the block rectangle.
func (l Layout) Rect() Rect { return l.rect }

// Channels returns the channels in block order. The slice must not be modified.
func (l Layout) Channels() []Channel { return l.channels }

// NumChannels returns the number of channels.
func (l Layout) NumChannels() int { return len(l.channels) }

// RawSize returns the uncompressed size of the block in bytes.
func (l Layout) RawSize() int { return l.size }

// SampleGrid returns the number of sample columns and rows channel c has
// inside the block.
func (l Layout) SampleGrid(c int) (nx, ny int) { return l.nx[c], l.ny[c] }

// PlaneSize returns the number of bytes channel c contributes to the block.
func (l Layout) PlaneSize(c int) int {
	return l.nx[c] * l.ny[c] * l.channels[c].Type.Size()
}

// WithRect returns a layout with the same channels covering another rectangle.
func (l Layout) WithRect(rect Rect) (Layout, error) {
	return NewLayout(rect, l.channels)
}

// Section is one subsampled scanline of one channel inside a block.
type Section struct {
	Channel int // index into Layout.Channels
	Y       int // absolute pixel row
	X       int // absolute pixel column of the first sample
	Count   int // number of samples
	Offset  int // byte offset of the first sample in the block
	Size    int // Count * sample size
}

// Sections yields the block's scanline sections in storage order.
// The sequence is lazy and may be iterated any number of times.
func (l Layout) Sections() iter.Seq[Section] {
	return func(yield func(Section) bool) {
		if l.rect.Empty() {
			return
		}
		off := 0
		for y := l.rect.Y; y <= l.rect.MaxY(); y++ {
			for c, ch := range l.channels {
				if floorMod(y, ch.YSampling) != 0 || l.nx[c] == 0 {
					continue
				}
				n := l.nx[c] * ch.Type.Size()
				s := Section{Channel: c, Y: y, X: l.x0[c], Count: l.nx[c], Offset: off, Size: n}
				off += n
				if !yield(s) {
					return
				}
			}
		}
	}
}

// Sample is one stored sample position.
type Sample struct {
	Channel int
	X, Y    int
	Offset  int
}

// Samples yields every stored sample of the block in storage order.
func (l Layout) Samples() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for s := range l.Sections() {
			ch := l.channels[s.Channel]
			size := ch.Type.Size()
			for i := 0; i < s.Count; i++ {
				if !yield(Sample{
					Channel: s.Channel,
					X:       s.X + i*ch.XSampling,
					Y:       s.Y,
					Offset:  s.Offset + i*size,
				}) {
					return
				}
			}
		}
	}
}
