// Package httpclient is the HTTP Client Facade for plain-HTTP access; its
// ranged-GET helper backs the Streaming Pipeline's stream.HTTPFetcher. The
// provider backends (webdavp, s3p, gdrive) use their own SDK clients and
// do not go through it. It centralizes
// timeouts, per-host concurrency limiting, retry/backoff, and an optional
// caching decorator so individual providers don't each reinvent them.
package httpclient

import (
	"net/http"
	"time"
)

// Default returns an HTTP client tuned for ordinary metadata calls
// (listing, stat, auth refresh): bounded overall timeout so a dead
// upstream never wedges an account's request path indefinitely.
func Default() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

// ForStreaming returns a client with no overall timeout, since a file
// download or DASH segment stream may legitimately run far longer than
// any fixed deadline, but keeps ResponseHeaderTimeout so a stalled
// upstream still fails fast rather than hanging a Range request forever.
func ForStreaming() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
