// Package account implements the Account entity from spec.md §4.3: a
// live binding of {id, username, type, Provider, per-account
// cancellation scope, cache view}. An Account exclusively owns its
// Provider and its stop scope; handlers only ever borrow an Account by
// shared reference, the Account Manager holds the sole strong
// ownership (spec.md §4.1 ownership rules).
package account

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// Account is one authenticated binding to a storage backend: a type tag,
// a username unique within that type, the live Provider instance, the
// generation counter the Account Manager assigned it at creation time,
// and the cancellation scope every request against this account composes
// with. The Auth Manager guarding the provider's current token is owned
// by the Provider instance itself (each concrete backend that needs
// token refresh constructs its own *auth.Manager internally, since the
// refresh/attach functions are provider-specific); Account does not hold
// a separate reference to it.
type Account struct {
	Type           string
	Username       string
	Provider       provider.Provider
	CreatedVersion int64

	stopCtx    context.Context
	stopCancel context.CancelFunc

	operationTimeout time.Duration
	cache            *cachemgr.Manager
}

// ID computes the spec's `"[type] username"` account identifier.
func ID(typeTag, username string) string {
	return fmt.Sprintf("[%s] %s", typeTag, username)
}

// New constructs an Account bound to prov, with its own stop scope
// derived from parent (normally context.Background — an Account outlives
// any single request). cache is the process-wide Cache Manager shared
// across every Account of the process; it is not owned by the Account.
// version is the Account Manager's monotonically increasing creation
// counter, letting code holding a stale reference detect it has been
// superseded by a later re-auth (spec.md's upsert semantics).
func New(parent context.Context, typeTag, username string, prov provider.Provider, version int64, cache *cachemgr.Manager) *Account {
	stopCtx, cancel := context.WithCancel(parent)
	return &Account{
		Type:             typeTag,
		Username:         username,
		Provider:         prov,
		CreatedVersion:   version,
		stopCtx:          stopCtx,
		stopCancel:       cancel,
		operationTimeout: DefaultOperationTimeout,
		cache:            cache,
	}
}

// SetOperationTimeout overrides the per-operation watchdog interval
// spec.md §4.5/§7 default to DefaultOperationTimeout; a zero or negative
// d disarms the watchdog entirely (WatchedRequestContext then behaves
// exactly like RequestContext).
func (a *Account) SetOperationTimeout(d time.Duration) { a.operationTimeout = d }

// ID returns this account's "[type] username" identifier.
func (a *Account) ID() string { return ID(a.Type, a.Username) }

// URLPrefix computes the `/<account_type>/<urlencoded_username>` path
// prefix spec.md §4.6 defines as the system boundary for this account's
// WebDAV, content, thumbnail, and directory-listing routes.
func URLPrefix(typeTag, username string) string {
	return "/" + typeTag + "/" + url.PathEscape(username)
}

// URLPrefix is a.URLPrefix(a.Type, a.Username).
func (a *Account) URLPrefix() string { return URLPrefix(a.Type, a.Username) }

// RequestContext composes a request's own context with the account's
// stop scope (logical-OR cancellation per spec.md §5): whichever fires
// first cancels the composite. Every downstream Provider/Cache/HTTP call
// made on behalf of a request should be threaded through the context
// this returns, not the bare request context.
func (a *Account) RequestContext(requestCtx context.Context) (context.Context, context.CancelFunc) {
	return withEitherCancel(requestCtx, a.stopCtx)
}

// WatchedRequestContext is RequestContext plus the timeout policy of
// spec.md §4.5: the returned context additionally carries a Watchdog
// armed for a.operationTimeout, tripped if nothing calls Reset before it
// elapses. A one-shot call that never calls Reset gets exactly one
// timeout window, the same as the original's un-reset
// TimingOutStopToken; a streaming call should call Reset on every chunk
// it delivers to push the deadline back out. The returned CancelFunc
// disarms the watchdog and releases the composed context; it must be
// deferred by the caller like RequestContext's.
func (a *Account) WatchedRequestContext(requestCtx context.Context) (context.Context, *Watchdog, context.CancelFunc) {
	ctx, cancel := a.RequestContext(requestCtx)
	if a.operationTimeout <= 0 {
		return ctx, &Watchdog{}, cancel
	}
	wctx, wd := WithWatchdog(ctx, a.operationTimeout)
	return wctx, wd, func() {
		wd.Stop()
		cancel()
	}
}

// CacheKey builds the Cache Manager key for a logical key under this
// account's (type, username) namespace.
func (a *Account) CacheKey(logicalKey string) cachemgr.Key {
	return cachemgr.Key{AccountType: a.Type, AccountUsername: a.Username, LogicalKey: logicalKey}
}

// Cache exposes this account's view of the process-wide Cache Manager.
// Kept as a method rather than a public field so the cache view can
// later be narrowed (e.g. namespaced wrapper) without touching callers.
func (a *Account) Cache() *cachemgr.Manager { return a.cache }

// Stop cancels the account's stop scope, aborting every in-flight
// stream attached to it. Idempotent.
func (a *Account) Stop() { a.stopCancel() }

// withEitherCancel returns a context cancelled when either a or b is
// cancelled/done, and a CancelFunc the caller must invoke to release the
// watcher goroutine once the composite is no longer needed.
func withEitherCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := make(chan struct{})
	go func() {
		select {
		case <-b.Done():
			cancel()
		case <-stop:
		}
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}
