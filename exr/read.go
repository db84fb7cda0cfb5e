package exr

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mrjoshuak/go-exrcore/compression"
	"github.com/mrjoshuak/go-exrcore/pixel"
)

// ReadOptions configures Read.
type ReadOptions struct {
	Parallel ParallelConfig
	Logger   *slog.Logger // nil discards
	// Pool supplies chunk buffers. Nil uses a private pool without a limit.
	Pool *BufferPool
	// Select picks the blocks to decode. Nil decodes every block.
	Select func(BlockIndex) bool
}

// DecodedBlock is the uncompressed content of one block.
type DecodedBlock struct {
	Chunk int
	Index BlockIndex
	Data  []byte
}

// BlockFailure records a block that could not be decoded.
type BlockFailure struct {
	Chunk int
	Index BlockIndex
	Err   error
}

// ReadResult holds the outcome of Read, in chunk order.
type ReadResult struct {
	Blocks   []DecodedBlock
	Failures []BlockFailure
}

// Block returns the decoded block for a chunk.
func (r *ReadResult) Block(chunk int) (DecodedBlock, bool) {
	i, ok := slices.BinarySearchFunc(r.Blocks, chunk, func(b DecodedBlock, c int) int { return cmp.Compare(b.Chunk, c) })
	if !ok {
		return DecodedBlock{}, false
	}
	return r.Blocks[i], true
}

// Read reads the chunk table at the current position of s and decodes the
// blocks it addresses. The table is read before any block; failing to read
// it fails the call.
//
// Corrupt, short or truncated blocks are reported in the result and the
// others are still decoded. Any other error, or cancellation of ctx, stops
// scheduling new blocks; Read then returns what it decoded so far together
// with the first such error.
//
// Storage that implements io.ReaderAt is read concurrently. Otherwise chunks
// are read one after another through the storage cursor, in storage order,
// and only decoding runs in parallel.
func Read(ctx context.Context, s Storage, h *Header, opts ReadOptions) (*ReadResult, error) {
	a, err := NewAddressing(h)
	if err != nil {
		return nil, err
	}
	codec, err := compression.For(h.Compression)
	if err != nil {
		return nil, err
	}
	log := logger(opts.Logger)
	pool := opts.Pool
	if pool == nil {
		pool = NewBufferPool(0)
	}
	cr, err := ReadChunkTable(s, a.ChunkCount())
	if err != nil {
		return nil, err
	}

	ra, positioned := s.(io.ReaderAt)

	var (
		mu  sync.Mutex
		res ReadResult
	)
	// scoped records block-scoped errors and passes fatal ones on.
	scoped := func(chunk int, b BlockIndex, err error) error {
		if !BlockScoped(err) {
			return &BlockError{Chunk: chunk, Index: b, Err: err}
		}
		mu.Lock()
		res.Failures = append(res.Failures, BlockFailure{Chunk: chunk, Index: b, Err: err})
		mu.Unlock()
		return nil
	}
	decode := func(chunk int, b BlockIndex, layout pixel.Layout, data []byte) error {
		b.Length = int64(len(data))
		expected := layout.RawSize()
		out, err := codec.Decompress(compression.Chunk{Data: data, UncompressedSize: expected, Block: chunk}, expected, layout)
		if err != nil {
			return scoped(chunk, b, err)
		}
		mu.Lock()
		res.Blocks = append(res.Blocks, DecodedBlock{Chunk: chunk, Index: b, Data: out})
		mu.Unlock()
		return nil
	}

	// Chunks are visited in storage order so that cursor reads only move
	// forward.
	chunks := lo.Range(a.ChunkCount())
	slices.SortStableFunc(chunks, func(x, y int) int { return cmp.Compare(cr.Offset(x), cr.Offset(y)) })

	workers := opts.Parallel.workers(a.ChunkCount())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var schedErr error
	for _, chunk := range chunks {
		if gctx.Err() != nil {
			break
		}
		b, err := a.blockAt(chunk)
		if err != nil {
			schedErr = err
			break
		}
		if opts.Select != nil && !opts.Select(b) {
			continue
		}
		b.Offset = cr.Offset(chunk)
		layout, err := a.Layout(b)
		if err != nil {
			schedErr = err
			break
		}
		expected := layout.RawSize()

		if !positioned {
			data, err := cr.ReadChunk(chunk, expected)
			if err != nil {
				if schedErr = scoped(chunk, b, err); schedErr != nil {
					break
				}
				continue
			}
			g.Go(func() error { return decode(chunk, b, layout, data) })
			continue
		}
		g.Go(func() error {
			buf, err := pool.Get(expected)
			if err != nil {
				return &BlockError{Chunk: chunk, Index: b, Err: err}
			}
			defer pool.Put(buf)
			data, err := cr.ReadChunkAt(ra, chunk, expected, buf)
			if err != nil {
				return scoped(chunk, b, err)
			}
			return decode(chunk, b, layout, data)
		})
	}
	err = cmp.Or(g.Wait(), schedErr, ctx.Err())

	slices.SortFunc(res.Blocks, func(x, y DecodedBlock) int { return cmp.Compare(x.Chunk, y.Chunk) })
	slices.SortFunc(res.Failures, func(x, y BlockFailure) int { return cmp.Compare(x.Chunk, y.Chunk) })
	for _, f := range res.Failures {
		log.Warn("exr: block skipped",
			slog.Int("chunk", f.Chunk),
			slog.Int("layer", f.Index.Layer),
			slog.String("level", f.Index.Level.String()),
			slog.Int("tile_x", f.Index.Tile.TileX),
			slog.Int("tile_y", f.Index.Tile.TileY),
			slog.Any("err", f.Err))
	}
	truncated := lo.CountBy(res.Failures, func(f BlockFailure) bool { return errors.Is(f.Err, ErrTruncatedFile) })
	log.Debug("exr: read blocks",
		slog.Int("decoded", len(res.Blocks)),
		slog.Int("failed", len(res.Failures)),
		slog.Int("truncated", truncated),
		slog.Bool("positioned", positioned),
		slog.Int("workers", workers))
	return &res, err
}
