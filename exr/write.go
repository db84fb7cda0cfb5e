package exr

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mrjoshuak/go-exrcore/compression"
)

// BlockSource returns the uncompressed bytes of a block, laid out as
// Addressing.Layout describes. It is called from several goroutines at once.
type BlockSource func(b BlockIndex) ([]byte, error)

// WriteOptions configures Write.
type WriteOptions struct {
	Parallel ParallelConfig
	Logger   *slog.Logger // nil discards
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

type compressedBlock struct {
	seq   int // position in storage order
	chunk int
	index BlockIndex
	data  compression.Chunk
}

// Write compresses every block of every layer of h and writes the chunk
// table followed by the chunks at the current position of s. Blocks are
// compressed in parallel and written by one cursor: in chunk order for
// increasing-y, in reverse for decreasing-y and as they complete for
// random-y. Any error stops the write; the table is then left unpatched.
func Write(ctx context.Context, s Storage, h *Header, src BlockSource, opts WriteOptions) error {
	a, err := NewAddressing(h)
	if err != nil {
		return err
	}
	codec, err := compression.For(h.Compression)
	if err != nil {
		return err
	}
	log := logger(opts.Logger)
	cw, err := NewChunkWriter(s, a.ChunkCount())
	if err != nil {
		return err
	}

	workers := opts.Parallel.workers(a.ChunkCount())
	window := 4 * workers
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// A slot is held from scheduling a block until it is written, which
	// bounds the compressed blocks waiting for their turn.
	slots := make(chan struct{}, window)
	results := make(chan compressedBlock, window)
	var workErr error

	go func() {
		defer close(results)
		seq := 0
	schedule:
		for layer := range h.NumLayers() {
			for i, tile := range a.EnumerateOrderedBlocks() {
				select {
				case slots <- struct{}{}:
				case <-gctx.Done():
					break schedule
				}
				chunk, pos := layer*a.ChunksPerLayer()+i, seq
				seq++
				g.Go(func() error {
					b, err := a.ToBlockIndex(tile, layer)
					if err != nil {
						return err
					}
					c, err := compressBlock(a, codec, src, b)
					if err != nil {
						return &BlockError{Chunk: chunk, Index: b, Err: err}
					}
					c.Block = chunk
					select {
					case results <- compressedBlock{seq: pos, chunk: chunk, index: b, data: c}:
						return nil
					case <-gctx.Done():
						return context.Cause(gctx)
					}
				})
			}
		}
		workErr = g.Wait()
	}()

	var (
		writeErr error
		pending  = make(map[int]compressedBlock)
		next     int
		written  int64
	)
	write := func(r compressedBlock) {
		<-slots
		if writeErr != nil {
			return
		}
		if err := cw.WriteChunk(r.chunk, r.data.Data); err != nil {
			writeErr = &BlockError{Chunk: r.chunk, Index: r.index, Err: err}
			cancel(writeErr)
			return
		}
		written += int64(len(r.data.Data))
	}
	for r := range results {
		if h.LineOrder == RandomY {
			write(r)
			continue
		}
		pending[r.seq] = r
		for {
			p, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			write(p)
			next++
		}
	}

	switch {
	case writeErr != nil:
		return writeErr
	case workErr != nil:
		return workErr
	}
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	if err := cw.Finish(); err != nil {
		return err
	}
	log.Debug("exr: wrote blocks",
		slog.Int("chunks", a.ChunkCount()),
		slog.Int64("bytes", written),
		slog.String("compression", h.Compression.String()),
		slog.Int("workers", workers))
	return nil
}

func compressBlock(a *Addressing, codec compression.Codec, src BlockSource, b BlockIndex) (compression.Chunk, error) {
	layout, err := a.Layout(b)
	if err != nil {
		return compression.Chunk{}, err
	}
	raw, err := src(b)
	if err != nil {
		return compression.Chunk{}, err
	}
	return codec.Compress(raw, layout)
}
