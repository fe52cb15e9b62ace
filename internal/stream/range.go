// Package stream implements the Streaming and Range Pipeline: lazy
// backpressured byte sequences from remote HTTP to client, a seekable
// byte source adapter that translates seeks into new ranged fetches, and
// the range -> HTTP response status/header mapping used by every handler
// that serves file content (content, thumbnail, mux, dash).
package stream

import (
	"fmt"
	"net/http"

	"github.com/cloudgate/cloudgate/internal/provider"
)

// ParseRangeHeader parses a single-range "bytes=start-end" request
// header into a provider.Range. Multi-range requests are not supported
// (the gateway always serves a single contiguous range, matching every
// streaming consumer it has: seek, thumbnail, DASH segment). Returns
// ok=false if rangeHeader is empty or malformed, in which case the
// caller should serve the full body.
func ParseRangeHeader(rangeHeader string) (rng provider.Range, ok bool) {
	var start, end int64
	if rangeHeader == "" {
		return provider.Range{}, false
	}
	n, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end)
	if err == nil && n == 2 {
		return provider.Range{Start: start, End: &end}, true
	}
	n, err = fmt.Sscanf(rangeHeader, "bytes=%d-", &start)
	if err == nil && n == 1 {
		return provider.Range{Start: start, End: nil}, true
	}
	return provider.Range{}, false
}

// ResponseHeaders computes the status code and headers for serving rng
// against a resource of size total, per spec.md §4.5: 206 with
// Content-Range when a range was requested, 200 otherwise; Accept-Ranges
// is always advertised when size is known. hadRange distinguishes "no
// Range requested" from "Range requested starting at 0 covering
// everything", both of which resolve rng the same way.
func ResponseHeaders(rng provider.Range, hadRange bool, total int64) (status int, header http.Header) {
	header = make(http.Header)
	if total >= 0 {
		header.Set("Accept-Ranges", "bytes")
	}
	if !hadRange {
		return http.StatusOK, header
	}
	end := rng.ResolveEnd(total)
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, end, total))
	return http.StatusPartialContent, header
}

// UnknownSizeHeaders is used when the resource's total size is not
// known up front: per spec.md §4.5, the response is always 200 without
// range headers in that case.
func UnknownSizeHeaders() (status int, header http.Header) {
	return http.StatusOK, make(http.Header)
}
