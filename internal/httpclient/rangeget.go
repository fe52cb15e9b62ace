package httpclient

import (
	"context"
	"fmt"
	"net/http"
)

// GetRange issues a GET against rawURL with a Range header for
// [start, end] (end == -1 means "to EOF") and returns the live response
// for the caller to stream from. It is the ranged-GET building block the
// Streaming Pipeline and every remote provider backend use to satisfy a
// provider.Range request without buffering the whole object in memory,
// grounded on the same range-request shape the pack's download path
// uses, generalized from "write the range to a file" to "hand the
// response body to the caller as a live stream".
func GetRange(ctx context.Context, client *http.Client, rawURL string, start, end int64, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = ForStreaming()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", formatRangeHeader(start, end))

	resp, err := DoWithRetry(ctx, client, req, policy)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}
	return resp, nil
}

// formatRangeHeader renders an RFC 7233 byte-range. end == -1 means open
// ended ("bytes=100-").
func formatRangeHeader(start, end int64) string {
	if end < 0 {
		return fmt.Sprintf("bytes=%d-", start)
	}
	return fmt.Sprintf("bytes=%d-%d", start, end)
}

// StatusError reports an unexpected HTTP status from an upstream
// provider call, carrying the URL for diagnostic logging.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: unexpected status %d from %s", e.Status, e.URL)
}
