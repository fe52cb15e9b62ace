package webdavadapter

import (
	"net/http"

	"golang.org/x/net/webdav"

	"github.com/cloudgate/cloudgate/internal/provider"
)

// NewHandler builds the http.Handler that serves prov's tree as WebDAV
// under prefix (spec.md §4.6's `/<account_type>/<urlencoded_username>`
// system boundary). It delegates the entire protocol — PROPFIND depth
// 0/1, MKCOL, PUT, DELETE, MOVE, PROPPATCH, LOCK/UNLOCK — to
// golang.org/x/net/webdav.Handler, which calls back into the FileSystem
// built here for every actual data operation.
//
// LockSystem uses an in-memory, non-persisted lock table
// (webdav.NewMemLS): providers in this system have no native locking
// primitive, so advisory locks exist only to satisfy clients that probe
// for LOCK support, matching the read-only-metadata framing of
// PROPPATCH in the same section.
func NewHandler(prov provider.Provider, prefix string) http.Handler {
	return &webdav.Handler{
		Prefix:     prefix,
		FileSystem: New(prov),
		LockSystem: webdav.NewMemLS(),
	}
}
