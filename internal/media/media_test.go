package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/stream"
)

func TestIconForMIME(t *testing.T) {
	cases := []struct {
		mime  string
		isDir bool
		want  IconClass
	}{
		{"", true, IconFolder},
		{"image/png", false, IconImage},
		{"audio/mpeg", false, IconAudio},
		{"video/mp4", false, IconVideo},
		{"application/zip", false, IconUnknown},
	}
	for _, c := range cases {
		if got := IconForMIME(c.mime, c.isDir); got != c.want {
			t.Errorf("IconForMIME(%q, %v) = %q, want %q", c.mime, c.isDir, got, c.want)
		}
	}
}

func TestPoolRunBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)
	var active, maxActive int32

	run := func() {
		pool.Run(context.Background(), func(ctx context.Context) ([]byte, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil, nil
		})
	}
	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		go func() { run(); done <- struct{}{} }()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	if maxActive > 2 {
		t.Errorf("expected at most 2 concurrent tasks, observed %d", maxActive)
	}
}

func TestPoolRunReturnsCancelledWhenContextDoneFirst(t *testing.T) {
	pool := NewPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Run(ctx, func(ctx context.Context) ([]byte, error) {
		time.Sleep(50 * time.Millisecond)
		return []byte("late"), nil
	})
	var c errs.Cancelled
	if !errors.As(err, &c) {
		t.Errorf("expected Cancelled, got %v", err)
	}
}

type staticBody struct{ *bytes.Reader }

func (staticBody) Close() error { return nil }

func TestImageThumbnailerGeneratesSmallerPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	fetch := func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		return staticBody{bytes.NewReader(data[start:])}, nil
	}
	src := stream.NewSeekableSource(context.Background(), fetch, int64(len(data)))

	out, err := ImageThumbnailer{}.Generate(context.Background(), src, ThumbnailOptions{Size: 10, Codec: CodecPNG})
	if err != nil {
		t.Fatal(err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	b := decoded.Bounds()
	if b.Dx() > 10 || b.Dy() > 10 {
		t.Errorf("expected thumbnail within 10px, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestImageThumbnailerRejectsCorruptData(t *testing.T) {
	data := []byte("not an image")
	fetch := func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		return staticBody{bytes.NewReader(data[start:])}, nil
	}
	src := stream.NewSeekableSource(context.Background(), fetch, int64(len(data)))

	_, err := ImageThumbnailer{}.Generate(context.Background(), src, ThumbnailOptions{Size: 10})
	var inv errs.Invalid
	if !errors.As(err, &inv) {
		t.Errorf("expected Invalid, got %v", err)
	}
}
