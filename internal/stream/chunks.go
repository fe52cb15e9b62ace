package stream

import (
	"context"
	"io"

	"github.com/cloudgate/cloudgate/internal/errs"
)

// ChunkSize is the read granularity for the lazy byte sequence.
const ChunkSize = 64 * 1024

// ChunkIterator is the "lazy byte sequence" façade of spec.md §4.5(a): a
// pull-based, finite, non-restartable iterator of byte chunks honoring
// an attached cancellation context. Calling Next after cancellation
// returns Cancelled and aborts the underlying reader.
type ChunkIterator struct {
	ctx     context.Context
	source  io.ReadCloser
	buf     []byte
	done    bool
	onChunk func()
}

// NewChunkIterator wraps source (already positioned at the desired
// start) as a pull-based chunk iterator bound to ctx.
func NewChunkIterator(ctx context.Context, source io.ReadCloser) *ChunkIterator {
	return &ChunkIterator{ctx: ctx, source: source, buf: make([]byte, ChunkSize)}
}

// NewWatchedChunkIterator is NewChunkIterator plus a progress callback
// invoked once per chunk actually delivered by Next. It's how a handler
// resets a per-operation watchdog (spec.md §4.5: "For streaming bodies
// the watchdog is reset on every chunk delivered") without this package
// needing to know anything about internal/account's Watchdog type.
func NewWatchedChunkIterator(ctx context.Context, source io.ReadCloser, onChunk func()) *ChunkIterator {
	c := NewChunkIterator(ctx, source)
	c.onChunk = onChunk
	return c
}

// Next pulls the next chunk, or returns (nil, io.EOF) once the sequence
// is exhausted. A cancelled ctx aborts the source and returns
// errs.Cancelled on the next call.
func (c *ChunkIterator) Next() ([]byte, error) {
	if c.done {
		return nil, io.EOF
	}
	select {
	case <-c.ctx.Done():
		c.done = true
		c.source.Close()
		return nil, errs.Cancelled("stream cancelled")
	default:
	}

	n, err := c.source.Read(c.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, c.buf[:n])
		if err == io.EOF {
			c.done = true
			c.source.Close()
		}
		if c.onChunk != nil {
			c.onChunk()
		}
		return chunk, nil
	}
	if err != nil {
		c.done = true
		c.source.Close()
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &errs.Io{Op: "chunk_read", Err: err}
	}
	return nil, nil
}

// Close aborts the iterator early, closing the underlying source.
func (c *ChunkIterator) Close() error {
	c.done = true
	return c.source.Close()
}

// CopyTo drains the iterator into w, honoring cancellation between
// chunks. Used by handlers that just want to stream straight to an
// http.ResponseWriter without touching the chunk boundaries themselves.
func (c *ChunkIterator) CopyTo(w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if len(chunk) == 0 {
			continue
		}
		n, werr := w.Write(chunk)
		total += int64(n)
		if werr != nil {
			c.Close()
			return total, &errs.Io{Op: "chunk_write", Err: werr}
		}
	}
}
