// Package compression implements the block codecs of the tiled container:
// RLE, ZIP, PXR24, B44, PIZ, DWA, HTJ2K and ZSTD, behind one Codec interface.
//
// Every codec consumes the bytes of one block laid out as described by a
// pixel.Layout, and every codec failure is scoped to the block it was given.
package compression

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by a codec matches exactly one of
// these with errors.Is.
var (
	// ErrConfiguration reports invalid codec parameters or an unsupported
	// channel layout for the chosen method.
	ErrConfiguration = errors.New("compression: invalid configuration")

	// ErrCorruptData reports a structurally invalid compressed block.
	ErrCorruptData = errors.New("compression: corrupt data")

	// ErrInsufficientData reports a compressed block that ends before the
	// data it declares.
	ErrInsufficientData = errors.New("compression: insufficient data")
)

// Codec-specific errors.
var (
	ErrRLECorrupted = fmt.Errorf("%w: RLE", ErrCorruptData)
	ErrRLEOverflow  = fmt.Errorf("%w: RLE output overflow", ErrCorruptData)

	ErrZIPCorrupted = fmt.Errorf("%w: ZIP", ErrCorruptData)

	ErrZSTDCorrupted = fmt.Errorf("%w: ZSTD", ErrCorruptData)

	ErrHuffmanCorrupted = fmt.Errorf("%w: huffman", ErrCorruptData)
	ErrHuffmanTruncated = fmt.Errorf("%w: huffman", ErrInsufficientData)

	ErrPIZCorrupted = fmt.Errorf("%w: PIZ", ErrCorruptData)
	ErrPIZTruncated = fmt.Errorf("%w: PIZ", ErrInsufficientData)

	ErrPXR24Corrupted = fmt.Errorf("%w: PXR24", ErrCorruptData)

	ErrB44Corrupted = fmt.Errorf("%w: B44", ErrCorruptData)

	ErrDWACorrupted   = fmt.Errorf("%w: DWA", ErrCorruptData)
	ErrDWAUnsupported = fmt.Errorf("%w: DWA version", ErrCorruptData)

	ErrHTJ2KCorrupted    = fmt.Errorf("%w: HTJ2K", ErrCorruptData)
	ErrHTJ2KInvalidMagic = fmt.Errorf("%w: HTJ2K magic", ErrCorruptData)

	ErrDeepCorrupted = fmt.Errorf("%w: deep block", ErrCorruptData)

	ErrSizeMismatch = fmt.Errorf("%w: decompressed size mismatch", ErrCorruptData)
)
