// Package server wires the Account Manager, Provider Registry, Cache
// Manager, and Media Subsystem into the single chi router that answers
// every route spec.md §6 names, plus the per-account WebDAV mounts the
// Account Manager's HandlerFactory registers as accounts come and go.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/config"
	"github.com/cloudgate/cloudgate/internal/handlers"
	"github.com/cloudgate/cloudgate/internal/logctx"
	"github.com/cloudgate/cloudgate/internal/media"
	"github.com/cloudgate/cloudgate/internal/provider"
	"github.com/cloudgate/cloudgate/internal/webdavadapter"
)

// Services bundles every shared component the server wires together,
// mirroring the "explicit builder receiving shared services as
// constructor arguments" pattern account.HandlerFactory already follows
// in place of the source's DI container (spec.md §9).
type Services struct {
	Registry    *provider.Registry
	Settings    *config.Settings
	Cache       *cachemgr.Manager
	Pool        *media.Pool
	Thumbnailer media.Thumbnailer
	Muxer       media.Muxer
	Logger      zerolog.Logger

	// Shutdown is invoked (off the request goroutine) when /quit is
	// called, once every account has been torn down. Typically
	// http.Server.Shutdown.
	Shutdown func(ctx context.Context)
}

// New builds the Account Manager and the HTTP handler serving every
// route in spec.md §6. The Account Manager is returned separately since
// cmd/cloudgate's startup-restore step (spec.md §8 scenario 5) and the
// settings subcommands both need to drive it directly.
func New(svc Services) (*account.Manager, http.Handler) {
	makeHandlers := func(acc *account.Account) map[string]http.Handler {
		dav := webdavadapter.NewHandler(acc.Provider, acc.URLPrefix())
		return map[string]http.Handler{
			acc.URLPrefix(): watchdogMiddleware(acc, dav),
		}
	}
	mgr := account.NewManager(svc.Registry, svc.Settings, svc.Cache, makeHandlers, account.Lifecycle{})

	h := handlers.New(mgr, svc.Registry, svc.Settings, svc.Cache, svc.Pool, svc.Thumbnailer)
	h.Muxer = svc.Muxer
	h.Shutdown = svc.Shutdown

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(svc.Logger))

	r.Method(http.MethodGet, "/", http.HandlerFunc(h.Home))
	r.Method(http.MethodOptions, "/", http.HandlerFunc(h.Home))
	r.Method("PROPFIND", "/", http.HandlerFunc(h.Home))
	r.Get("/auth/{type}", h.Auth)
	r.Get("/remove/{id}", h.Remove)
	r.Post("/remove/{id}", h.Remove)
	r.Get("/list/{type}/{username}", h.List)
	r.Get("/list/{type}/{username}/{itemID}", h.List)
	r.Get("/content/{type}/{username}/{itemID}", h.Content)
	r.Get("/thumbnail/{type}/{username}/{itemID}", h.Thumbnail)
	r.Get("/dash/{type}/{username}/{itemID}", h.Dash)
	r.Get("/mux", h.Mux)
	r.Get("/size", h.Size)
	r.Get("/settings", h.SettingsPage)
	r.Post("/settings/host-set", h.SetHostSet)
	r.Post("/settings/public-network", h.SetPublicNetwork)
	r.HandleFunc("/quit", h.Quit)

	// Every other path falls through to whichever account owns the
	// longest matching URL prefix (its mounted WebDAV handler), per
	// spec.md §4.6's per-account URL-prefix routing.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if handler, ok := mgr.Route(req.URL.Path); ok {
			handler.ServeHTTP(w, req)
			return
		}
		http.NotFound(w, req)
	})

	return mgr, r
}

// watchdogMiddleware composes every WebDAV request against acc's
// stop scope and arms the per-operation watchdog of spec.md §4.5 around
// it, attaching the Watchdog to the request context so
// internal/webdavadapter's readFile/pendingUpload can reset it on every
// chunk of a GET/PUT body they deliver or accept.
func watchdogMiddleware(acc *account.Account, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, wd, cancel := acc.WatchedRequestContext(r.Context())
		defer cancel()
		next.ServeHTTP(w, r.WithContext(webdavadapter.WithWatchdog(ctx, wd)))
	})
}

// requestLogger attaches a request-scoped logger (carrying a fresh
// request_id) to the context, the same per-request field-enrichment
// cs3org-reva's appctx.WithLogger performs per RPC, generalized here to
// an HTTP middleware over chi's request lifecycle.
func requestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := logctx.NewRequestID()
			logger := base.With().Str("request_id", requestID).Str("method", r.Method).Str("path", r.URL.Path).Logger()
			ctx := logctx.With(r.Context(), logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info().Int("status", ww.Status()).Dur("elapsed", time.Since(start)).Msg("request")
		})
	}
}

// RestoreAccounts re-creates every persisted Account at startup without
// replaying OAuth, spec.md §8 scenario 5's "process restart, accounts
// restored from Settings" behavior.
func RestoreAccounts(ctx context.Context, mgr *account.Manager, settings *config.Settings) error {
	tokens, err := settings.ListTokens(ctx)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if _, err := mgr.CreateAccount(ctx, t.Type, provider.AuthToken{TypeTag: t.Type, Blob: t.Blob}); err != nil {
			logctx.From(ctx).Error().Err(err).Str("account_id", t.AccountID).Msg("failed to restore account")
		}
	}
	return nil
}
