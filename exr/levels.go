package exr

import (
	"fmt"
	"math/bits"
	"slices"
	"sync"
)

// Resolution is a size in pixels.
type Resolution struct {
	Width, Height int
}

// LevelIndex names a level of the pyramid. Mipmap levels have X == Y.
type LevelIndex struct {
	X, Y int
}

func (l LevelIndex) String() string { return fmt.Sprintf("(%d,%d)", l.X, l.Y) }

// Level is one entry of a resolution pyramid.
type Level struct {
	Index      LevelIndex
	Resolution Resolution
}

// floorLog2 and ceilLog2 take n >= 1.
func floorLog2(n int) int { return bits.Len(uint(n)) - 1 }
func ceilLog2(n int) int  { return bits.Len(uint(n - 1)) }

// levelCount returns the number of levels an axis of the given size has.
func levelCount(size int, rounding RoundingMode) int {
	if size <= 1 {
		return 1
	}
	if rounding == RoundUp {
		return ceilLog2(size) + 1
	}
	return floorLog2(size) + 1
}

// levelSize halves size l times. Level 0 keeps the base size, including
// zero; deeper levels never drop below 1.
func levelSize(size, l int, rounding RoundingMode) int {
	if l == 0 {
		return size
	}
	if rounding == RoundUp {
		return max((size+(1<<l)-1)>>l, 1)
	}
	return max(size>>l, 1)
}

// Levels is the resolution pyramid of one header. It is immutable and safe
// for concurrent use; per-axis sizes are computed once on first use.
type Levels struct {
	base     Resolution
	rounding RoundingMode
	mode     LevelMode
	nx, ny   int

	once    sync.Once
	widths  []int
	heights []int
	ordered []Level
}

// NewLevels computes the level counts of a pyramid.
func NewLevels(base Resolution, rounding RoundingMode, mode LevelMode) (*Levels, error) {
	if base.Width < 0 || base.Height < 0 {
		return nil, configError("base resolution", base, "negative size")
	}
	if rounding != RoundDown && rounding != RoundUp {
		return nil, configError("rounding mode", rounding, "unknown")
	}
	l := &Levels{base: base, rounding: rounding, mode: mode}
	switch mode {
	case LevelModeOne:
		l.nx, l.ny = 1, 1
	case LevelModeMipmap:
		n := levelCount(max(base.Width, base.Height), rounding)
		l.nx, l.ny = n, n
	case LevelModeRipmap:
		l.nx = levelCount(base.Width, rounding)
		l.ny = levelCount(base.Height, rounding)
	default:
		return nil, configError("level mode", mode, "unknown")
	}
	return l, nil
}

// ComputeLevels returns every level of the pyramid in chunk-table order:
// mipmap levels from largest to smallest, ripmap levels with the y level
// outer and the x level inner.
func ComputeLevels(base Resolution, rounding RoundingMode, mode LevelMode) ([]Level, error) {
	l, err := NewLevels(base, rounding, mode)
	if err != nil {
		return nil, err
	}
	return slices.Clone(l.All()), nil
}

func (l *Levels) init() {
	l.widths = make([]int, l.nx)
	for i := range l.widths {
		l.widths[i] = levelSize(l.base.Width, i, l.rounding)
	}
	l.heights = make([]int, l.ny)
	for i := range l.heights {
		l.heights[i] = levelSize(l.base.Height, i, l.rounding)
	}
	if l.mode == LevelModeMipmap {
		for i := range l.nx {
			l.ordered = append(l.ordered, Level{
				Index:      LevelIndex{i, i},
				Resolution: Resolution{l.widths[i], l.heights[i]},
			})
		}
		return
	}
	for y := range l.ny {
		for x := range l.nx {
			l.ordered = append(l.ordered, Level{
				Index:      LevelIndex{x, y},
				Resolution: Resolution{l.widths[x], l.heights[y]},
			})
		}
	}
}

// Base returns the level 0 resolution.
func (l *Levels) Base() Resolution { return l.base }

// Mode returns the level mode.
func (l *Levels) Mode() LevelMode { return l.mode }

// Rounding returns the rounding mode.
func (l *Levels) Rounding() RoundingMode { return l.rounding }

// NumXLevels returns the number of levels along x.
func (l *Levels) NumXLevels() int { return l.nx }

// NumYLevels returns the number of levels along y.
func (l *Levels) NumYLevels() int { return l.ny }

// Len returns the number of levels in the pyramid.
func (l *Levels) Len() int {
	if l.mode == LevelModeMipmap {
		return l.nx
	}
	return l.nx * l.ny
}

// Valid reports whether idx names a level of the pyramid.
func (l *Levels) Valid(idx LevelIndex) bool {
	if idx.X < 0 || idx.Y < 0 || idx.X >= l.nx || idx.Y >= l.ny {
		return false
	}
	return l.mode != LevelModeMipmap || idx.X == idx.Y
}

// Resolution returns the size of a level.
func (l *Levels) Resolution(idx LevelIndex) (Resolution, error) {
	if !l.Valid(idx) {
		return Resolution{}, configError("level", idx, "outside %v pyramid of %dx%d levels", l.mode, l.nx, l.ny)
	}
	l.once.Do(l.init)
	return Resolution{l.widths[idx.X], l.heights[idx.Y]}, nil
}

// Position returns the position of a level in chunk-table order.
func (l *Levels) Position(idx LevelIndex) (int, error) {
	if !l.Valid(idx) {
		return 0, configError("level", idx, "outside %v pyramid of %dx%d levels", l.mode, l.nx, l.ny)
	}
	if l.mode == LevelModeMipmap {
		return idx.X, nil
	}
	return idx.Y*l.nx + idx.X, nil
}

// All returns the levels in chunk-table order. The slice is shared and must
// not be modified.
func (l *Levels) All() []Level {
	l.once.Do(l.init)
	return l.ordered
}
