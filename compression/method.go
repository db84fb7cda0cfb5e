package compression

import "fmt"

// Kind identifies a compression method without its parameters.
type Kind uint8

// Compression kinds.
const (
	KindNone Kind = iota
	KindRLE
	KindZIP
	KindPXR24
	KindB44
	KindPIZ
	KindDWA
	KindHTJ2K
	KindZSTD
)

var kindNames = [...]string{
	KindNone:  "none",
	KindRLE:   "rle",
	KindZIP:   "zip",
	KindPXR24: "pxr24",
	KindB44:   "b44",
	KindPIZ:   "piz",
	KindDWA:   "dwa",
	KindHTJ2K: "htj2k",
	KindZSTD:  "zstd",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Method is a compression method together with its parameters. The zero
// value is None. Methods are comparable.
type Method struct {
	kind Kind

	linesPerBlock int     // ZIP
	optimizeFlat  bool    // B44
	quality       float32 // DWA
	blockSize     int     // HTJ2K
	level         int     // ZSTD
}

// Parameterless methods.
var (
	None  = Method{kind: KindNone}
	RLE   = Method{kind: KindRLE}
	PXR24 = Method{kind: KindPXR24}
	PIZ   = Method{kind: KindPIZ}
)

// Default parameters.
const (
	DefaultZIPLines       = 16
	DefaultDWAQuality     = 45
	DefaultHTJ2KBlockSize = 128
	DefaultZSTDLevel      = 3
)

// NewZIP returns deflate compression covering linesPerBlock scanlines per
// block. One line per block is the single-scanline variant.
func NewZIP(linesPerBlock int) Method {
	return Method{kind: KindZIP, linesPerBlock: linesPerBlock}
}

// NewB44 returns B44 compression. With optimizeUniformAreas set, 4x4 blocks
// holding a single value are stored in 3 bytes (the B44A variant).
func NewB44(optimizeUniformAreas bool) Method {
	return Method{kind: KindB44, optimizeFlat: optimizeUniformAreas}
}

// NewDWA returns DCT-based lossy compression at the given quality level.
func NewDWA(qualityLevel float32) Method {
	return Method{kind: KindDWA, quality: qualityLevel}
}

// NewHTJ2K returns lossless high-throughput JPEG 2000 compression with
// square code blocks of blockSize samples, either 32 or 128.
func NewHTJ2K(blockSize int) Method {
	return Method{kind: KindHTJ2K, blockSize: blockSize}
}

// NewZSTD returns Zstandard compression at a zstd level (1..22).
func NewZSTD(level int) Method {
	return Method{kind: KindZSTD, level: level}
}

// Kind returns the method tag.
func (m Method) Kind() Kind { return m.kind }

// LinesPerBlock returns the ZIP scanline count, or 0 for other methods.
func (m Method) LinesPerBlock() int { return m.linesPerBlock }

// OptimizeUniformAreas reports the B44 flat-block option.
func (m Method) OptimizeUniformAreas() bool { return m.optimizeFlat }

// QualityLevel returns the DWA quality level.
func (m Method) QualityLevel() float32 { return m.quality }

// BlockSize returns the HTJ2K code block size.
func (m Method) BlockSize() int { return m.blockSize }

// Level returns the ZSTD level.
func (m Method) Level() int { return m.level }

// Lossy reports whether the method may alter sample values.
func (m Method) Lossy() bool {
	switch m.kind {
	case KindPXR24, KindB44, KindDWA:
		return true
	}
	return false
}

// ScanlinesPerBlock is the number of scanlines a scanline-organized file
// groups into one block with this method.
func (m Method) ScanlinesPerBlock() int {
	switch m.kind {
	case KindZIP:
		return max(m.linesPerBlock, 1)
	case KindPIZ, KindPXR24, KindB44, KindHTJ2K:
		return 32
	case KindDWA:
		return 256
	}
	return 1
}

// Validate checks the method parameters.
func (m Method) Validate() error {
	switch m.kind {
	case KindNone, KindRLE, KindPXR24, KindPIZ, KindB44:
		return nil
	case KindZIP:
		if m.linesPerBlock < 1 {
			return fmt.Errorf("%w: zip lines per block %d", ErrConfiguration, m.linesPerBlock)
		}
	case KindDWA:
		if m.quality < 0 {
			return fmt.Errorf("%w: dwa quality %g", ErrConfiguration, m.quality)
		}
	case KindHTJ2K:
		if m.blockSize != 32 && m.blockSize != 128 {
			return fmt.Errorf("%w: htj2k block size %d", ErrConfiguration, m.blockSize)
		}
	case KindZSTD:
		if m.level < 1 || m.level > 22 {
			return fmt.Errorf("%w: zstd level %d", ErrConfiguration, m.level)
		}
	default:
		return fmt.Errorf("%w: unknown method %v", ErrConfiguration, m.kind)
	}
	return nil
}

func (m Method) String() string {
	switch m.kind {
	case KindZIP:
		return fmt.Sprintf("zip(%d)", m.linesPerBlock)
	case KindB44:
		if m.optimizeFlat {
			return "b44a"
		}
		return "b44"
	case KindDWA:
		return fmt.Sprintf("dwa(%g)", m.quality)
	case KindHTJ2K:
		return fmt.Sprintf("htj2k(%d)", m.blockSize)
	case KindZSTD:
		return fmt.Sprintf("zstd(%d)", m.level)
	}
	return m.kind.String()
}
