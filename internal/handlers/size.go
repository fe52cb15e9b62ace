package handlers

import (
	"net/http"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/errs"
)

// Size serves GET /size?account_type=&account_username=: the account's
// space usage, per spec.md §6.
func (h *Handlers) Size(w http.ResponseWriter, r *http.Request) {
	typeTag := r.URL.Query().Get("account_type")
	username := r.URL.Query().Get("account_username")

	acc, ok := h.Accounts.Get(account.ID(typeTag, username))
	if !ok {
		writeJSONError(w, errs.NotFound(account.ID(typeTag, username)))
		return
	}
	ctx, cancel := acc.RequestContext(r.Context())
	defer cancel()

	general, err := acc.Provider.GetGeneralData(ctx)
	if err != nil {
		writeJSONError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"space_used":  general.SpaceUsed,
		"space_total": general.SpaceTotal,
	})
}
