package exr

import (
	"fmt"

	"github.com/mrjoshuak/go-exrcore/compression"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

// LevelMode selects the resolution pyramid of a tiled image.
type LevelMode int

// Level modes.
const (
	LevelModeOne    LevelMode = iota // a single full-resolution level
	LevelModeMipmap                  // levels halve both axes together
	LevelModeRipmap                  // levels halve each axis independently
)

func (m LevelMode) String() string {
	switch m {
	case LevelModeOne:
		return "one"
	case LevelModeMipmap:
		return "mipmap"
	case LevelModeRipmap:
		return "ripmap"
	}
	return fmt.Sprintf("LevelMode(%d)", int(m))
}

// RoundingMode decides how odd sizes halve between levels.
type RoundingMode int

// Rounding modes.
const (
	RoundDown RoundingMode = iota
	RoundUp
)

func (r RoundingMode) String() string {
	switch r {
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	}
	return fmt.Sprintf("RoundingMode(%d)", int(r))
}

// LineOrder is the order chunks are stored in.
type LineOrder int

// Line orders.
const (
	IncreasingY LineOrder = iota
	DecreasingY
	RandomY
)

func (o LineOrder) String() string {
	switch o {
	case IncreasingY:
		return "increasing-y"
	case DecreasingY:
		return "decreasing-y"
	case RandomY:
		return "random-y"
	}
	return fmt.Sprintf("LineOrder(%d)", int(o))
}

// Tiling describes how a tiled image is cut into blocks.
type Tiling struct {
	Width, Height int // nominal tile size
	Mode          LevelMode
	Rounding      RoundingMode
}

// Header is the image metadata the block engine needs. It is parsed and
// serialized elsewhere.
type Header struct {
	// DataWindow is the pixel rectangle of level 0. Its size is the base
	// resolution and its origin is the origin of every level.
	DataWindow pixel.Rect

	// Tiling is nil for scanline images, which have one level cut into
	// full-width strips of Compression.ScanlinesPerBlock() lines.
	Tiling *Tiling

	LineOrder   LineOrder
	Channels    []pixel.Channel
	Compression compression.Method

	// Layers is the number of layers sharing this geometry. Zero means one.
	Layers int
}

// NumLayers returns the number of layers, at least one.
func (h *Header) NumLayers() int { return max(h.Layers, 1) }

// Tiled reports whether the image is tiled.
func (h *Header) Tiled() bool { return h.Tiling != nil }

// BlockSize returns the nominal block size: the tile size, or the full
// width by the scanlines per block.
func (h *Header) BlockSize() (width, height int) {
	if h.Tiling != nil {
		return h.Tiling.Width, h.Tiling.Height
	}
	return max(h.DataWindow.Width, 1), h.Compression.ScanlinesPerBlock()
}

// levelParams returns the level mode and rounding, which are fixed for
// scanline images.
func (h *Header) levelParams() (LevelMode, RoundingMode) {
	if h.Tiling == nil {
		return LevelModeOne, RoundDown
	}
	return h.Tiling.Mode, h.Tiling.Rounding
}

// Validate checks every parameter the block engine depends on.
func (h *Header) Validate() error {
	if h.DataWindow.Width < 0 || h.DataWindow.Height < 0 {
		return configError("data window", h.DataWindow, "negative size")
	}
	if h.Layers < 0 {
		return configError("layer count", h.Layers, "negative")
	}
	if t := h.Tiling; t != nil {
		if t.Width < 1 || t.Height < 1 {
			return configError("tile size", fmt.Sprintf("%dx%d", t.Width, t.Height), "must be at least 1x1")
		}
		if t.Mode < LevelModeOne || t.Mode > LevelModeRipmap {
			return configError("level mode", t.Mode, "unknown")
		}
		if t.Rounding != RoundDown && t.Rounding != RoundUp {
			return configError("rounding mode", t.Rounding, "unknown")
		}
	}
	if h.LineOrder < IncreasingY || h.LineOrder > RandomY {
		return configError("line order", h.LineOrder, "unknown")
	}
	if len(h.Channels) == 0 {
		return configError("channel list", 0, "empty")
	}
	if _, err := pixel.NewLayout(pixel.Rect{}, h.Channels); err != nil {
		return configError("channel list", len(h.Channels), "%v", err)
	}
	if err := h.Compression.Validate(); err != nil {
		return configError("compression", h.Compression, "%v", err)
	}
	return nil
}
