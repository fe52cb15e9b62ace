// Package media implements spec.md §4.7's Media Subsystem Interface: the
// Thumbnailer/Muxer contracts CPU-bound media operations are dispatched
// through, and the static-icon fallback chooser used when both a
// provider's own thumbnail endpoint and Thumbnailer generation fail.
//
// Per spec.md, this subsystem is a contract, not a codec toolchain: the
// gateway's own job is to unify storage backends, not to reimplement
// ffmpeg. A concrete Thumbnailer is provided for the one case pure Go
// handles well (downscaling still images); Muxer has no concrete
// implementation in this build since A/V muxing genuinely requires an
// external codec library out of scope here, but the interface boundary
// exists so handlers (`/mux`, `/dash`) can depend on it without caring
// which implementation is wired in.
package media

import (
	"context"

	"github.com/cloudgate/cloudgate/internal/stream"
)

// ThumbnailCodec selects the output image codec for a generated thumbnail.
type ThumbnailCodec int

const (
	CodecPNG ThumbnailCodec = iota
	CodecJPEG
)

// ThumbnailOptions controls Thumbnailer.Generate's output.
type ThumbnailOptions struct {
	Size  int // longest edge, in pixels
	Codec ThumbnailCodec
}

// Thumbnailer generates a thumbnail image from a seekable byte source.
// Implementations must honor ctx cancellation and are expected to be
// CPU-bound, so callers dispatch Generate through a Pool rather than
// calling it directly from the I/O scheduler.
type Thumbnailer interface {
	Generate(ctx context.Context, source *stream.SeekableSource, opts ThumbnailOptions) ([]byte, error)
}

// Container selects the output container format for Muxer.Mux.
type Container int

const (
	ContainerMP4 Container = iota
	ContainerWebM
)

// MuxOptions controls Muxer.Mux's output. Seekable=true produces a
// container whose index sits at the front (two-pass, requires buffering
// the full output before the first byte can be sent); Seekable=false
// produces a streamable form that can begin emitting before the whole
// input has been consumed.
type MuxOptions struct {
	Container Container
	Seekable  bool
}

// Muxer combines an independently-sourced video and audio track into one
// container stream, returned as a lazy byte sequence.
type Muxer interface {
	Mux(ctx context.Context, video, audio *stream.SeekableSource, opts MuxOptions) (*stream.ChunkIterator, error)
}
