// Package exr addresses, compresses and stores the blocks of a tiled,
// multi-resolution HDR image.
//
// A Header describes the image. Levels computes its resolution pyramid,
// Addressing maps levels and tiles to blocks and chunk-table positions, and
// Write and Read move blocks between memory and a Storage through a chunk
// offset table, compressing them in parallel.
package exr

import (
	"errors"
	"fmt"

	"github.com/mrjoshuak/go-exrcore/compression"
)

// Error classes. Codec errors from the compression package match the same
// values, so one errors.Is call classifies any failure.
var (
	// ErrConfiguration reports invalid header, level or tile parameters.
	// It is fatal.
	ErrConfiguration = compression.ErrConfiguration

	// ErrCorruptData reports a malformed block or chunk table. It is scoped
	// to a block unless it occurs in the chunk table.
	ErrCorruptData = compression.ErrCorruptData

	// ErrInsufficientData reports a compressed block that ends early.
	ErrInsufficientData = compression.ErrInsufficientData

	// ErrTruncatedFile reports a read past the end of the storage.
	ErrTruncatedFile = errors.New("exr: truncated file")

	// ErrIO reports a failure of the storage medium. It is fatal and never
	// retried.
	ErrIO = errors.New("exr: storage failure")
)

// ConfigurationError names the parameter that made a header or request
// invalid.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("exr: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configError(field string, value any, format string, args ...any) error {
	return &ConfigurationError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// BlockError attaches the identity of a block to the error that stopped it.
type BlockError struct {
	Chunk int
	Index BlockIndex
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("exr: chunk %d (layer %d, level %d,%d, tile %d,%d): %v",
		e.Chunk, e.Index.Layer, e.Index.Level.X, e.Index.Level.Y, e.Index.Tile.TileX, e.Index.Tile.TileY, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// BlockScoped reports whether err only affects the block it came from, so
// that reading can continue with the other blocks.
func BlockScoped(err error) bool {
	return errors.Is(err, ErrCorruptData) || errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrTruncatedFile)
}
