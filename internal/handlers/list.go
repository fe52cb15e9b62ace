package handlers

import (
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/cloudgate/cloudgate/internal/account"
)

// List serves GET /list/<type>/<username>/<item_id>: an HTML directory
// listing. An empty item_id lists the account root, which is also the
// redirect target account creation produces (spec.md §8 scenario 1).
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	acc, ctx, cancel, err := h.resolveAccount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	dir, err := h.resolveItem(ctx, acc, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if dir.IsFile() {
		http.Redirect(w, r, "/content/"+accountPath(acc)+"/"+itemPath(dir.ID), http.StatusFound)
		return
	}

	items, err := h.listDirectory(ctx, acc, dir)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>%s</h1><ul>\n", html.EscapeString(dir.Name))
	for _, it := range items {
		kind := "file"
		href := "/content/" + accountPath(acc) + "/" + itemPath(it.ID)
		if it.IsDirectory() {
			kind = "directory"
			href = "/list/" + accountPath(acc) + "/" + itemPath(it.ID)
		}
		fmt.Fprintf(w, "<li class=%q><a href=%q>%s</a></li>\n", kind, href, html.EscapeString(it.Name))
	}
	fmt.Fprint(w, "</ul></body></html>")
}

// accountPath builds the <type>/<urlencoded_username> path prefix
// id-addressed handler URLs are rooted under, matching spec.md §4.6's
// system-boundary path convention.
func accountPath(acc *account.Account) string {
	return acc.Type + "/" + url.PathEscape(acc.Username)
}
