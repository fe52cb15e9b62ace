// Package handlers implements spec.md §6's HTTP surface: thin glue
// binding URLs to the Account Manager, Cache Manager, WebDAV Adapter,
// and Media Subsystem. Handlers never hold state of their own; every
// method hangs off Handlers, which only borrows shared services supplied
// at construction, the same "explicit builder over injected services"
// shape internal/account.HandlerFactory already uses in place of the
// source's DI container.
package handlers

import (
	"context"
	"net/http"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/config"
	"github.com/cloudgate/cloudgate/internal/media"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// Exchanger completes an OAuth (or equivalent) callback for one provider
// type tag, turning the inbound request's query parameters into an
// AuthToken. Per-provider OAuth wire detail is out of scope (spec.md §1);
// concrete providers register their own Exchanger at startup the same
// way they register a provider.Factory.
type Exchanger func(ctx context.Context, r *http.Request) (provider.AuthToken, error)

// Handlers holds every service the HTTP surface borrows. Constructed once
// at startup and wired into internal/server's router.
type Handlers struct {
	Accounts    *account.Manager
	Registry    *provider.Registry
	Settings    *config.Settings
	Cache       *cachemgr.Manager
	Pool        *media.Pool
	Thumbnailer media.Thumbnailer
	Muxer       media.Muxer // nil: /mux reports Unsupported; /dash still renders its page pointing at /mux

	Exchangers map[string]Exchanger

	// Shutdown, when set, is invoked by Quit after every Account has been
	// torn down, so /quit can trigger a graceful http.Server.Shutdown
	// from within a handler without this package importing net/http's
	// server type directly.
	Shutdown func(ctx context.Context)
}

// New constructs a Handlers. Exchangers and Muxer may be filled in after
// construction as concrete providers/codec backends register themselves.
func New(accounts *account.Manager, registry *provider.Registry, settings *config.Settings, cache *cachemgr.Manager, pool *media.Pool, thumbnailer media.Thumbnailer) *Handlers {
	return &Handlers{
		Accounts:    accounts,
		Registry:    registry,
		Settings:    settings,
		Cache:       cache,
		Pool:        pool,
		Thumbnailer: thumbnailer,
		Exchangers:  make(map[string]Exchanger),
	}
}
