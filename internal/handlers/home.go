package handlers

import (
	"fmt"
	"html"
	"net/http"

	"golang.org/x/net/webdav"
)

// rootHandler lazily builds the synthetic WebDAV handler PROPFIND "/"
// delegates to.
func (h *Handlers) rootHandler() http.Handler {
	return &webdav.Handler{
		FileSystem: rootFileSystem{accounts: h.Accounts},
		LockSystem: webdav.NewMemLS(),
	}
}

// Home serves every method spec.md §4.3 describes for "/": OPTIONS
// returns a fixed DAV/Allow header set, PROPFIND delegates to the
// synthetic root WebDAV filesystem, and every other method renders the
// home page listing live accounts and registered provider types.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "OPTIONS":
		w.Header().Set("Allow", "OPTIONS, GET, HEAD, POST, PUT, DELETE, PROPFIND, MKCOL, MOVE, COPY, PROPPATCH")
		w.Header().Set("DAV", "1, 2")
		w.WriteHeader(http.StatusNoContent)
		return
	case "PROPFIND":
		h.rootHandler().ServeHTTP(w, r)
		return
	}

	if r.URL.Path != "/" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>cloudgate</h1><h2>Accounts</h2><ul>\n")
	for _, acc := range h.Accounts.List() {
		fmt.Fprintf(w, "<li><a href=\"/list/%s\">%s</a> (<a href=\"/remove/%s\">remove</a>)</li>\n",
			accountPath(acc), html.EscapeString(acc.ID()), html.EscapeString(acc.ID()))
	}
	fmt.Fprint(w, "</ul><h2>Link a new account</h2><ul>\n")
	for _, t := range h.Registry.Types() {
		fmt.Fprintf(w, "<li><a href=\"/auth/%s\">%s</a></li>\n", t, html.EscapeString(t))
	}
	fmt.Fprint(w, "</ul><p><a href=\"/settings\">settings</a></p></body></html>")
}
