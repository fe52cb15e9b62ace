package handlers

import (
	"fmt"
	"html"
	"net/http"

	"github.com/cloudgate/cloudgate/internal/errs"
)

// Dash serves GET /dash/<type>/<username>/<item_id>: a minimal HTML page
// embedding a DASH player pointed at the item's muxed stream. Manifest
// generation and the DASH player itself are external collaborators
// (spec.md §1's "HTML/CSS/JS user interface" is out of scope); this
// handler only resolves the item and renders the page that wires it to
// /mux.
func (h *Handlers) Dash(w http.ResponseWriter, r *http.Request) {
	acc, ctx, cancel, err := h.resolveAccount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	item, err := h.resolveItem(ctx, acc, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if item.IsDirectory() {
		writeError(w, errs.Invalid("cannot play a directory"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><body>
<h1>%s</h1>
<video id="player" controls
  src="/mux?video_id=%s&video_type=%s&video_username=%s&format=mp4&seekable=true"></video>
</body></html>`,
		html.EscapeString(item.Name),
		itemPath(item.ID), acc.Type, acc.Username)
}
