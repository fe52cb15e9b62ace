package account

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/config"
	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// HandlerFactory builds the set of per-account handlers to register once
// an Account exists, keyed by the URL prefix each should own. Supplied by
// the embedder (the server wiring, not this package) so that
// internal/account never imports internal/handlers or
// internal/webdavadapter — the same "explicit builder receiving shared
// services as constructor arguments" pattern spec.md §9 calls for in
// place of the source's DI container.
type HandlerFactory func(acc *Account) map[string]http.Handler

// Lifecycle notifies an embedder of account creation/destruction, mirroring
// spec.md §4.3's on_create/on_destroy hooks. Either field may be nil.
type Lifecycle struct {
	OnCreate  func(acc *Account)
	OnDestroy func(ctx context.Context, acc *Account) error
}

type routeEntry struct {
	accountID string
	prefix    string
	handler   http.Handler
}

// Manager is the Account Manager & Router of spec.md §4.3: it owns every
// live Account, the Provider Factory used to instantiate new ones, the
// Settings component backing token persistence, and the prefix-routed
// table of per-account handlers. The handler with the longest prefix that
// is itself a prefix of the request path wins; ties cannot occur because
// registered prefixes are always distinct account URL roots.
type Manager struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	routes   []routeEntry

	registry     *provider.Registry
	settings     *config.Settings
	cache        *cachemgr.Manager
	makeHandlers HandlerFactory
	lifecycle    Lifecycle

	version int64
}

// NewManager constructs an Account Manager. registry instantiates
// Providers by type tag; settings persists/restores AuthTokens; cache is
// the process-wide Cache Manager handed to every Account; makeHandlers
// builds the per-account handler set once an Account exists.
func NewManager(registry *provider.Registry, settings *config.Settings, cache *cachemgr.Manager, makeHandlers HandlerFactory, lifecycle Lifecycle) *Manager {
	return &Manager{
		accounts:     make(map[string]*Account),
		registry:     registry,
		settings:     settings,
		cache:        cache,
		makeHandlers: makeHandlers,
		lifecycle:    lifecycle,
	}
}

// CreateAccount runs the account creation protocol of spec.md §4.3:
// instantiate the Provider, learn its username, upsert by id (cancelling
// and replacing any existing Account with the same id), persist the
// token, register handlers, and fire on_create.
func (m *Manager) CreateAccount(ctx context.Context, typeTag string, token provider.AuthToken) (*Account, error) {
	prov, err := m.registry.Create(ctx, typeTag, token)
	if err != nil {
		return nil, err
	}
	general, err := prov.GetGeneralData(ctx)
	if err != nil {
		return nil, err
	}
	if general.Username == "" {
		return nil, errs.Invalid("provider returned an empty username")
	}

	id := ID(typeTag, general.Username)
	version := atomic.AddInt64(&m.version, 1)
	acc := New(context.Background(), typeTag, general.Username, prov, version, m.cache)

	m.mu.Lock()
	if old, exists := m.accounts[id]; exists {
		old.Stop()
		m.unregisterLocked(id)
	}
	m.accounts[id] = acc
	m.mu.Unlock()

	if m.settings != nil {
		if err := m.settings.PutToken(ctx, id, token); err != nil {
			m.mu.Lock()
			delete(m.accounts, id)
			m.mu.Unlock()
			acc.Stop()
			return nil, err
		}
	}

	if m.makeHandlers != nil {
		m.mu.Lock()
		for prefix, h := range m.makeHandlers(acc) {
			m.routes = append(m.routes, routeEntry{accountID: id, prefix: prefix, handler: h})
		}
		sortRoutesLocked(m.routes)
		m.mu.Unlock()
	}

	if m.lifecycle.OnCreate != nil {
		m.lifecycle.OnCreate(acc)
	}
	return acc, nil
}

// RemoveAccount runs the destruction protocol: cancel the account's stop
// scope first (aborting in-flight streams with Cancelled), unregister its
// handlers, remove its persisted token, await on_destroy, then drop it.
func (m *Manager) RemoveAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	acc, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return errs.NotFound(id)
	}
	acc.Stop()
	m.unregisterLocked(id)
	delete(m.accounts, id)
	m.mu.Unlock()

	if m.settings != nil {
		if err := m.settings.RemoveToken(ctx, id); err != nil {
			return err
		}
	}
	if m.lifecycle.OnDestroy != nil {
		return m.lifecycle.OnDestroy(ctx, acc)
	}
	return nil
}

// Quit destroys every live Account concurrently and awaits all of them,
// per spec.md §4.3.
func (m *Manager) Quit(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	wg.Add(len(ids))
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			m.RemoveAccount(ctx, id)
		}(id)
	}
	wg.Wait()
}

// Get returns the live Account for id, if any.
func (m *Manager) Get(id string) (*Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[id]
	return acc, ok
}

// List returns every live Account, for the home page and root PROPFIND.
func (m *Manager) List() []*Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Route returns the handler whose registered prefix is the longest
// prefix of path, or (nil, false) if no account owns any prefix of it.
func (m *Manager) Route(path string) (http.Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.routes {
		if len(path) >= len(r.prefix) && path[:len(r.prefix)] == r.prefix {
			return r.handler, true
		}
	}
	return nil, false
}

// unregisterLocked drops every route entry belonging to id. Must be
// called with m.mu held.
func (m *Manager) unregisterLocked(id string) {
	kept := m.routes[:0]
	for _, r := range m.routes {
		if r.accountID == id {
			continue
		}
		kept = append(kept, r)
	}
	m.routes = kept
}

// sortRoutesLocked orders routes by descending prefix length so Route's
// linear scan finds the longest match first. Must be called with m.mu
// held.
func sortRoutesLocked(routes []routeEntry) {
	sort.SliceStable(routes, func(i, j int) bool {
		return len(routes[i].prefix) > len(routes[j].prefix)
	})
}
