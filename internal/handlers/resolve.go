package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// resolveAccount looks up the Account named by the {type}/{username}
// chi route parameters and composes the request's cancellation with the
// account's stop scope (spec.md §5's "logical-OR: cancel-if-either") plus
// the per-operation watchdog of spec.md §4.5. The returned cancel func
// must be deferred by the caller. Content, whose response body streams
// in chunks, calls resolveAccountWatched instead, to get the Watchdog and
// reset it on each chunk delivered.
func (h *Handlers) resolveAccount(r *http.Request) (*account.Account, context.Context, context.CancelFunc, error) {
	acc, ctx, _, cancel, err := h.resolveAccountWatched(r)
	return acc, ctx, cancel, err
}

// resolveAccountWatched is resolveAccount plus direct access to the
// armed Watchdog, for callers that stream a response body and need to
// call Reset on it as each chunk is delivered.
func (h *Handlers) resolveAccountWatched(r *http.Request) (*account.Account, context.Context, *account.Watchdog, context.CancelFunc, error) {
	typeTag := chi.URLParam(r, "type")
	username, err := url.PathUnescape(chi.URLParam(r, "username"))
	if err != nil {
		return nil, nil, nil, nil, errs.Invalid("malformed username segment")
	}

	acc, ok := h.Accounts.Get(account.ID(typeTag, username))
	if !ok {
		return nil, nil, nil, nil, errs.NotFound(account.ID(typeTag, username))
	}
	ctx, wd, cancel := acc.WatchedRequestContext(r.Context())
	return acc, ctx, wd, cancel, nil
}

// resolveItem resolves the {itemID} route parameter (URL-escaped, since
// provider ids are opaque and may contain arbitrary bytes) against
// acc's Item(id) cache, falling back to the account root when itemID is
// empty (the "/list/<type>/<username>/" with no id means root" shape
// spec.md §8 scenario 1's redirect target uses).
func (h *Handlers) resolveItem(ctx context.Context, acc *account.Account, r *http.Request) (provider.Item, error) {
	raw := chi.URLParam(r, "itemID")
	if raw == "" {
		return acc.Provider.GetRoot(ctx)
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		return provider.Item{}, errs.Invalid("malformed item id segment")
	}
	return h.lookupItem(ctx, acc, provider.ID(id))
}

// itemPath builds the URL path segment for id, escaped the same way
// resolveItem unescapes it.
func itemPath(id provider.ID) string {
	return url.PathEscape(string(id))
}
