package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/cloudgate/cloudgate/internal/errs"
)

// Remove serves GET/POST /remove/<id>: tears down and deletes Account
// <id>, running the destruction protocol (internal/account.Manager's
// RemoveAccount), then redirects home.
func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.Invalid("malformed account id"))
		return
	}
	if err := h.Accounts.RemoveAccount(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
