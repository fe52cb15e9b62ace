package handlers

import (
	"context"
	"net/http"
)

// Quit serves GET/POST /quit: runs the Account Manager's Quit protocol
// (destroy every live Account concurrently, await all — spec.md §4.3)
// then triggers a graceful server shutdown, exiting the process with
// code 0 per spec.md §6's "Exit codes: 0 on clean shutdown via /quit".
// The exact method and response shape for /quit are not spelled out in
// a dedicated table row; this build answers a plain 200 before shutting
// down so a synchronous caller observes the response.
func (h *Handlers) Quit(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("shutting down"))

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.Accounts.Quit(r.Context())
	if h.Shutdown != nil {
		// Run off the request goroutine: http.Server.Shutdown blocks
		// until every in-flight handler (including this one) returns,
		// so calling it inline here would deadlock.
		go h.Shutdown(context.Background())
	}
}
