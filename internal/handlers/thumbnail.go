package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/media"
	"github.com/cloudgate/cloudgate/internal/provider"
	"github.com/cloudgate/cloudgate/internal/stream"
)

// Thumbnail serves GET /thumbnail/<type>/<username>/<item_id>, trying
// the provider's own thumbnail endpoint first and falling back to
// generation (cached under the Image(id,quality) key) then a static
// icon, per spec.md §4.7.
func (h *Handlers) Thumbnail(w http.ResponseWriter, r *http.Request) {
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

	quality := provider.QualityLow
	if r.URL.Query().Get("quality") == "high" {
		quality = provider.QualityHigh
	}

	thumb, err := acc.Provider.GetThumbnail(ctx, item, quality, provider.Range{})
	switch {
	case err == nil:
		w.Header().Set("Content-Type", thumb.MimeType)
		w.Write(thumb.Bytes)
		return
	case isNotFound(err):
		// fall through to generation
	default:
		writeError(w, err)
		return
	}

	data, mime, err := h.generateThumbnail(ctx, acc, item, int(quality))
	if err != nil {
		redirectToIcon(w, r, item)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Write(data)
}

func isNotFound(err error) bool {
	_, ok := err.(errs.NotFound)
	return ok
}

// generateThumbnail produces (or replays, stale-first, from the
// Image(id,quality) cache entry) a generated thumbnail for item via
// h.Thumbnailer, dispatched through the CPU-bound worker pool per
// spec.md §4.7 ("must therefore be dispatched to a worker pool rather
// than the I/O scheduler").
func (h *Handlers) generateThumbnail(ctx context.Context, acc *account.Account, item provider.Item, quality int) ([]byte, string, error) {
	if h.Thumbnailer == nil {
		return nil, "", errs.Unsupported("no Thumbnailer is wired in this build")
	}

	key := acc.CacheKey(imageKey(item.ID, quality))
	refresh := func(ctx context.Context) (cachemgr.Value, error) {
		size := int64(-1)
		if item.Size != nil {
			size = *item.Size
		}
		src := stream.NewSeekableSource(ctx, fileFetcher(acc.Provider, item), size)
		defer src.Close()

		bytesOut, err := h.Pool.Run(ctx, func(ctx context.Context) ([]byte, error) {
			return h.Thumbnailer.Generate(ctx, src, thumbnailOptions(quality))
		})
		if err != nil {
			return cachemgr.Value{}, err
		}
		return cachemgr.Value{Data: bytesOut}, nil
	}

	versioned, err := h.Cache.Get(ctx, key, true, refresh)
	if err != nil {
		return nil, "", err
	}
	if versioned.Present {
		return versioned.Value.Data, "image/png", nil
	}
	newVal, err := versioned.Updated.Wait(ctx)
	if err != nil {
		return nil, "", err
	}
	if newVal == nil {
		return nil, "", errs.NotFound(string(item.ID))
	}
	return newVal.Data, "image/png", nil
}

func thumbnailOptions(quality int) media.ThumbnailOptions {
	size := 160
	if quality == int(provider.QualityHigh) {
		size = 512
	}
	return media.ThumbnailOptions{Size: size, Codec: media.CodecPNG}
}

// fileFetcher adapts a Provider's ranged get_file_content into a
// stream.Fetcher, the same shape internal/webdavadapter.readFile uses.
func fileFetcher(prov provider.Provider, item provider.Item) stream.Fetcher {
	return func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		var rEnd *int64
		if end >= 0 {
			e := end
			rEnd = &e
		}
		content, err := prov.GetFileContent(ctx, item, provider.Range{Start: start, End: rEnd})
		if err != nil {
			return nil, err
		}
		return content.Body, nil
	}
}

// redirectToIcon serves the static fallback icon spec.md §4.7 names for
// item's MIME class. Static asset serving itself is an external
// collaborator (spec.md §1); this handler only picks the icon class and
// lets /static/* serve the file.
func redirectToIcon(w http.ResponseWriter, r *http.Request, item provider.Item) {
	class := media.IconForMIME(item.MimeType, item.IsDirectory())
	http.Redirect(w, r, "/static/icons/"+string(class)+".svg", http.StatusFound)
}
