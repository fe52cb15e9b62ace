package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloudgate/cloudgate/internal/errs"
)

// Auth serves GET/POST /auth/<type>: completes the OAuth (or equivalent)
// callback for provider <type> via its registered Exchanger, then runs
// the account creation protocol and redirects to /list/<type>/<username>/
// per spec.md §8 scenario 1.
func (h *Handlers) Auth(w http.ResponseWriter, r *http.Request) {
	typeTag := chi.URLParam(r, "type")

	exchange, ok := h.Exchangers[typeTag]
	if !ok {
		writeError(w, errs.Unsupported("provider type "+typeTag+" has no registered auth exchanger"))
		return
	}

	token, err := exchange(r.Context(), r)
	if err != nil {
		writeError(w, err)
		return
	}

	acc, err := h.Accounts.CreateAccount(r.Context(), typeTag, token)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, "/list/"+accountPath(acc)+"/", http.StatusFound)
}
