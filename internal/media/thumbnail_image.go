package media

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/stream"
)

// ImageThumbnailer generates thumbnails for still images (image/*
// sources) by decoding and nearest-neighbor downscaling with the
// standard library's image package. Video and audio thumbnails require
// an external codec toolchain and have no concrete Thumbnailer in this
// build; the Thumbnailer interface exists so handlers can depend on one
// without caring which concrete implementation, if any, backs it.
type ImageThumbnailer struct{}

// Generate implements Thumbnailer.
func (ImageThumbnailer) Generate(ctx context.Context, source *stream.SeekableSource, opts ThumbnailOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Cancelled("thumbnail generation cancelled before start")
	}

	src, _, err := image.Decode(source)
	if err != nil {
		return nil, errs.Invalid("unsupported or corrupt image: " + err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Cancelled("thumbnail generation cancelled after decode")
	}

	size := opts.Size
	if size <= 0 {
		size = 256
	}
	scaled := nearestNeighborScale(src, size)

	var buf bytes.Buffer
	switch opts.Codec {
	case CodecJPEG:
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85}); err != nil {
			return nil, &errs.Io{Op: "thumbnail_encode_jpeg", Err: err}
		}
	default:
		if err := png.Encode(&buf, scaled); err != nil {
			return nil, &errs.Io{Op: "thumbnail_encode_png", Err: err}
		}
	}
	return buf.Bytes(), nil
}

// nearestNeighborScale resizes src so its longest edge equals maxEdge,
// preserving aspect ratio. Nearest-neighbor keeps this dependency-free:
// no third-party resampling library is wired for a feature this small.
func nearestNeighborScale(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}

	var newW, newH int
	if w >= h {
		newW = maxEdge
		newH = h * maxEdge / w
	} else {
		newH = maxEdge
		newW = w * maxEdge / h
	}
	if newW <= 0 {
		newW = 1
	}
	if newH <= 0 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		srcY := bounds.Min.Y + y*h/newH
		for x := 0; x < newW; x++ {
			srcX := bounds.Min.X + x*w/newW
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}
