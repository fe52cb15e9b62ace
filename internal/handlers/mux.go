package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/media"
	"github.com/cloudgate/cloudgate/internal/provider"
	"github.com/cloudgate/cloudgate/internal/stream"
)

// Mux serves GET /mux: combines an independently-sourced video and audio
// track into one container stream via the Muxer contract (spec.md
// §4.7). With no concrete Muxer wired in this build (A/V muxing needs an
// external codec toolchain, out of scope per spec.md §1) this always
// reports Unsupported; the route exists so a future Muxer implementation
// only needs to be assigned to Handlers.Muxer.
func (h *Handlers) Mux(w http.ResponseWriter, r *http.Request) {
	if h.Muxer == nil {
		writeError(w, errs.Unsupported("A/V muxing requires an external codec toolchain not wired in this build"))
		return
	}

	q := r.URL.Query()
	videoAcc, videoCtx, videoCancel, err := h.resolveAccountByQuery(r, "video_type", "video_username")
	if err != nil {
		writeError(w, err)
		return
	}
	defer videoCancel()
	audioAcc, audioCtx, audioCancel, err := h.resolveAccountByQuery(r, "audio_type", "audio_username")
	if err != nil {
		writeError(w, err)
		return
	}
	defer audioCancel()

	videoID, err := url.PathUnescape(q.Get("video_id"))
	if err != nil {
		writeError(w, errs.Invalid("malformed video_id"))
		return
	}
	audioID, err := url.PathUnescape(q.Get("audio_id"))
	if err != nil {
		writeError(w, errs.Invalid("malformed audio_id"))
		return
	}

	videoItem, err := h.lookupItem(videoCtx, videoAcc, provider.ID(videoID))
	if err != nil {
		writeError(w, err)
		return
	}
	audioItem, err := h.lookupItem(audioCtx, audioAcc, provider.ID(audioID))
	if err != nil {
		writeError(w, err)
		return
	}

	videoSize, audioSize := int64(-1), int64(-1)
	if videoItem.Size != nil {
		videoSize = *videoItem.Size
	}
	if audioItem.Size != nil {
		audioSize = *audioItem.Size
	}
	videoSrc := stream.NewSeekableSource(videoCtx, fileFetcher(videoAcc.Provider, videoItem), videoSize)
	audioSrc := stream.NewSeekableSource(audioCtx, fileFetcher(audioAcc.Provider, audioItem), audioSize)
	defer videoSrc.Close()
	defer audioSrc.Close()

	opts := media.MuxOptions{Seekable: q.Get("seekable") == "true"}
	if q.Get("format") == "webm" {
		opts.Container = media.ContainerWebM
	}

	it, err := h.Muxer.Mux(r.Context(), videoSrc, audioSrc, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	defer it.Close()

	if opts.Container == media.ContainerWebM {
		w.Header().Set("Content-Type", "video/webm")
	} else {
		w.Header().Set("Content-Type", "video/mp4")
	}
	it.CopyTo(w)
}

// resolveAccountByQuery is resolveAccount's equivalent for /mux, which
// names each track's account via query parameters instead of path
// segments since it combines two independent accounts in one request.
func (h *Handlers) resolveAccountByQuery(r *http.Request, typeParam, usernameParam string) (*account.Account, context.Context, context.CancelFunc, error) {
	typeTag := r.URL.Query().Get(typeParam)
	username := r.URL.Query().Get(usernameParam)
	acc, ok := h.Accounts.Get(account.ID(typeTag, username))
	if !ok {
		return nil, nil, nil, errs.NotFound(account.ID(typeTag, username))
	}
	ctx, _, cancel := acc.WatchedRequestContext(r.Context())
	return acc, ctx, cancel, nil
}
