package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

func TestParseRangeHeaderStartEnd(t *testing.T) {
	rng, ok := ParseRangeHeader("bytes=100-199")
	if !ok {
		t.Fatal("expected ok")
	}
	if rng.Start != 100 || rng.End == nil || *rng.End != 199 {
		t.Errorf("unexpected range: %+v", rng)
	}
}

func TestParseRangeHeaderOpenEnded(t *testing.T) {
	rng, ok := ParseRangeHeader("bytes=500-")
	if !ok {
		t.Fatal("expected ok")
	}
	if rng.Start != 500 || rng.End != nil {
		t.Errorf("unexpected range: %+v", rng)
	}
}

func TestParseRangeHeaderEmptyNotOk(t *testing.T) {
	if _, ok := ParseRangeHeader(""); ok {
		t.Error("expected not ok for empty header")
	}
}

func TestResponseHeadersNoRangeIs200(t *testing.T) {
	status, header := ResponseHeaders(provider.Range{}, false, 1000)
	if status != 200 {
		t.Errorf("expected 200, got %d", status)
	}
	if header.Get("Content-Range") != "" {
		t.Error("expected no Content-Range header when no range requested")
	}
	if header.Get("Accept-Ranges") != "bytes" {
		t.Error("expected Accept-Ranges: bytes when size is known")
	}
}

func TestResponseHeadersWithRangeIs206(t *testing.T) {
	end := int64(199)
	rng := provider.Range{Start: 100, End: &end}
	status, header := ResponseHeaders(rng, true, 1000)
	if status != 206 {
		t.Errorf("expected 206, got %d", status)
	}
	if header.Get("Content-Range") != "bytes 100-199/1000" {
		t.Errorf("unexpected Content-Range: %s", header.Get("Content-Range"))
	}
}

type closingReader struct {
	*bytes.Reader
	closed bool
}

func (c *closingReader) Close() error { c.closed = true; return nil }

func TestChunkIteratorCopyToDrainsAllBytes(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), ChunkSize*2+17)
	src := &closingReader{Reader: bytes.NewReader(payload)}
	it := NewChunkIterator(context.Background(), src)

	var out bytes.Buffer
	n, err := it.CopyTo(&out)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(payload)) {
		t.Errorf("expected %d bytes, got %d", len(payload), n)
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Error("copied bytes do not match payload")
	}
	if !src.closed {
		t.Error("expected source to be closed after full drain")
	}
}

func TestChunkIteratorCancelledReturnsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &closingReader{Reader: bytes.NewReader([]byte("data"))}
	it := NewChunkIterator(ctx, src)

	_, err := it.Next()
	var c errs.Cancelled
	if !errors.As(err, &c) {
		t.Errorf("expected Cancelled, got %v", err)
	}
}

type fakeBody struct {
	data []byte
	pos  int
}

func (f *fakeBody) Read(p []byte) (int, error) {
	if f.pos >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += n
	return n, nil
}
func (f *fakeBody) Close() error { return nil }

func TestSeekableSourceReadPastEOFReturnsZero(t *testing.T) {
	data := []byte("hello world")
	calls := 0
	fetch := func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		calls++
		return &fakeBody{data: data[start:]}, nil
	}
	src := NewSeekableSource(context.Background(), fetch, int64(len(data)))
	src.Seek(int64(len(data)), io.SeekStart)
	n, err := src.Read(make([]byte, 10))
	if n != 0 || err != io.EOF {
		t.Errorf("expected (0, io.EOF) past end, got (%d, %v)", n, err)
	}
}

func TestSeekableSourceSeekRestartsGenerator(t *testing.T) {
	data := []byte("0123456789")
	var starts []int64
	fetch := func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		starts = append(starts, start)
		return &fakeBody{data: data[start:]}, nil
	}
	src := NewSeekableSource(context.Background(), fetch, int64(len(data)))

	buf := make([]byte, 2)
	src.Read(buf)
	src.Seek(5, io.SeekStart)
	src.Read(buf)

	if len(starts) != 2 || starts[0] != 0 || starts[1] != 5 {
		t.Errorf("expected fetches at [0,5], got %v", starts)
	}
}

func TestSeekableSourceSizeUnsupportedWhenUnknown(t *testing.T) {
	src := NewSeekableSource(context.Background(), nil, -1)
	_, err := src.Size()
	var u errs.Unsupported
	if !errors.As(err, &u) {
		t.Errorf("expected Unsupported, got %v", err)
	}
}
