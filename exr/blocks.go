package exr

import (
	"cmp"
	"iter"
	"sort"

	"github.com/samber/lo"

	"github.com/mrjoshuak/go-exrcore/pixel"
)

// TileCoordinate names one tile of one level.
type TileCoordinate struct {
	Level        LevelIndex
	TileX, TileY int
}

// Compare orders tiles by y level, x level, tile row and tile column. This
// is the order of the chunk table.
func Compare(a, b TileCoordinate) int {
	if c := cmp.Compare(a.Level.Y, b.Level.Y); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Level.X, b.Level.X); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TileY, b.TileY); c != 0 {
		return c
	}
	return cmp.Compare(a.TileX, b.TileX)
}

// BlockIndex locates one block: its layer, level, tile and absolute pixel
// rectangle. Offset and Length give its chunk position in storage once
// known.
type BlockIndex struct {
	Layer  int
	Level  LevelIndex
	Tile   TileCoordinate
	Rect   pixel.Rect
	Offset int64
	Length int64
}

// Addressing maps the levels and tiles of a header to blocks and chunk
// numbers. It is immutable and safe for concurrent use.
type Addressing struct {
	header     *Header
	levels     *Levels
	tileW      int
	tileH      int
	grids      [][2]int // tile grid per level, chunk-table order
	firstChunk []int    // chunk number of each level's first tile
	perLayer   int
	layout     pixel.Layout
}

// NewAddressing validates h and precomputes its level and tile tables.
func NewAddressing(h *Header) (*Addressing, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	mode, rounding := h.levelParams()
	levels, err := NewLevels(Resolution{h.DataWindow.Width, h.DataWindow.Height}, rounding, mode)
	if err != nil {
		return nil, err
	}
	layout, err := pixel.NewLayout(pixel.Rect{}, h.Channels)
	if err != nil {
		return nil, configError("channel list", len(h.Channels), "%v", err)
	}
	a := &Addressing{header: h, levels: levels, layout: layout}
	a.tileW, a.tileH = h.BlockSize()

	all := levels.All()
	a.grids = lo.Map(all, func(l Level, _ int) [2]int {
		return [2]int{ceilDiv(l.Resolution.Width, a.tileW), ceilDiv(l.Resolution.Height, a.tileH)}
	})
	a.firstChunk = make([]int, len(all))
	for i, g := range a.grids {
		a.firstChunk[i] = a.perLayer
		a.perLayer += g[0] * g[1]
	}
	return a, nil
}

func ceilDiv(n, d int) int { return (n + d - 1) / d }

// Header returns the header the addressing was built from.
func (a *Addressing) Header() *Header { return a.header }

// Levels returns the resolution pyramid.
func (a *Addressing) Levels() *Levels { return a.levels }

// TileSize returns the nominal block size.
func (a *Addressing) TileSize() (width, height int) { return a.tileW, a.tileH }

// TileGrid returns the number of tile columns and rows of a level.
func (a *Addressing) TileGrid(level LevelIndex) (nx, ny int, err error) {
	pos, err := a.levels.Position(level)
	if err != nil {
		return 0, 0, err
	}
	return a.grids[pos][0], a.grids[pos][1], nil
}

// TileIndices returns the tiles of a level in row-major order. An invalid
// level yields nothing. The sequence may be iterated any number of times.
func (a *Addressing) TileIndices(level LevelIndex) iter.Seq[TileCoordinate] {
	return func(yield func(TileCoordinate) bool) {
		nx, ny, err := a.TileGrid(level)
		if err != nil {
			return
		}
		for ty := range ny {
			for tx := range nx {
				if !yield(TileCoordinate{Level: level, TileX: tx, TileY: ty}) {
					return
				}
			}
		}
	}
}

// naturalOrder yields every tile of one layer with its chunk number.
func (a *Addressing) naturalOrder() iter.Seq2[int, TileCoordinate] {
	return func(yield func(int, TileCoordinate) bool) {
		i := 0
		for _, l := range a.levels.All() {
			for t := range a.TileIndices(l.Index) {
				if !yield(i, t) {
					return
				}
				i++
			}
		}
	}
}

// EnumerateOrderedBlocks yields the tiles of one layer in storage order,
// each with its sequential index. The index is the increasing-y position of
// the tile, whatever the line order, and equals its chunk number within the
// layer. Decreasing-y order is the exact reverse of increasing-y order;
// random-y files are enumerated in increasing-y order.
func (a *Addressing) EnumerateOrderedBlocks() iter.Seq2[int, TileCoordinate] {
	if a.header.LineOrder != DecreasingY {
		return a.naturalOrder()
	}
	return func(yield func(int, TileCoordinate) bool) {
		for i := a.perLayer - 1; i >= 0; i-- {
			t, _, err := a.TileAt(i)
			if err != nil || !yield(i, t) {
				return
			}
		}
	}
}

// ChunksPerLayer returns the number of chunks in one layer.
func (a *Addressing) ChunksPerLayer() int { return a.perLayer }

// ChunkCount returns the number of chunks of all layers.
func (a *Addressing) ChunkCount() int { return a.perLayer * a.header.NumLayers() }

// ChunkIndex returns the chunk-table position of a tile. Layers follow one
// another in the table.
func (a *Addressing) ChunkIndex(tile TileCoordinate, layer int) (int, error) {
	if layer < 0 || layer >= a.header.NumLayers() {
		return 0, configError("layer", layer, "header has %d", a.header.NumLayers())
	}
	pos, err := a.levels.Position(tile.Level)
	if err != nil {
		return 0, err
	}
	nx, ny := a.grids[pos][0], a.grids[pos][1]
	if tile.TileX < 0 || tile.TileY < 0 || tile.TileX >= nx || tile.TileY >= ny {
		return 0, configError("tile", tile, "level %v has %dx%d tiles", tile.Level, nx, ny)
	}
	return layer*a.perLayer + a.firstChunk[pos] + tile.TileY*nx + tile.TileX, nil
}

// TileAt is the inverse of ChunkIndex.
func (a *Addressing) TileAt(chunk int) (TileCoordinate, int, error) {
	if chunk < 0 || chunk >= a.ChunkCount() {
		return TileCoordinate{}, 0, configError("chunk", chunk, "table has %d", a.ChunkCount())
	}
	layer, rest := chunk/a.perLayer, chunk%a.perLayer
	// Last level whose first chunk is at or before rest. Empty levels share
	// their first chunk with the next level, so the last match is the one
	// holding rest.
	pos := sort.Search(len(a.firstChunk), func(i int) bool { return a.firstChunk[i] > rest }) - 1
	nx := a.grids[pos][0]
	off := rest - a.firstChunk[pos]
	level := a.levels.All()[pos].Index
	return TileCoordinate{Level: level, TileX: off % nx, TileY: off / nx}, layer, nil
}

// ToBlockIndex returns the block of a tile. Edge tiles are clipped to the
// level resolution.
func (a *Addressing) ToBlockIndex(tile TileCoordinate, layer int) (BlockIndex, error) {
	if _, err := a.ChunkIndex(tile, layer); err != nil {
		return BlockIndex{}, err
	}
	res, err := a.levels.Resolution(tile.Level)
	if err != nil {
		return BlockIndex{}, err
	}
	x0, y0 := tile.TileX*a.tileW, tile.TileY*a.tileH
	rect := pixel.Rect{
		X:      a.header.DataWindow.X + x0,
		Y:      a.header.DataWindow.Y + y0,
		Width:  min(a.tileW, res.Width-x0),
		Height: min(a.tileH, res.Height-y0),
	}
	return BlockIndex{Layer: layer, Level: tile.Level, Tile: tile, Rect: rect}, nil
}

// Layout returns the byte layout of a block.
func (a *Addressing) Layout(b BlockIndex) (pixel.Layout, error) {
	return a.layout.WithRect(b.Rect)
}

func (a *Addressing) blockAt(chunk int) (BlockIndex, error) {
	tile, layer, err := a.TileAt(chunk)
	if err != nil {
		return BlockIndex{}, err
	}
	return a.ToBlockIndex(tile, layer)
}
