// Package auth implements the Auth Manager: it wraps a Provider's outbound
// HTTP calls with token insertion, 401-triggered refresh, and an
// at-most-one-refresh-in-flight barrier. The barrier is grounded on the
// same single-flight shape used elsewhere in the pack for deduplicating
// concurrent work against one key (a download, here a token refresh),
// generalized from "one key per asset" to "one refresh per Manager".
package auth

import (
	"bytes"
	"context"
	"net/http"
	"sync"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// Refresher performs a provider-specific token refresh, returning the
// new token or an error if the provider rejected the refresh.
type Refresher func(ctx context.Context, stale provider.AuthToken) (provider.AuthToken, error)

// AttachFunc attaches provider-specific authorization to an outbound
// request given the current token (e.g. an Authorization: Bearer header,
// or a signed query parameter for providers that work that way).
type AttachFunc func(req *http.Request, token provider.AuthToken)

// OnTokenUpdated is invoked exactly once per successful refresh, with the
// new token, before any retry that depends on it is issued — so
// concurrent callers waiting on the same refresh observe the committed
// token rather than a stale in-memory copy.
type OnTokenUpdated func(ctx context.Context, newToken provider.AuthToken)

// state is the Auth Manager's two-state machine: Active admits any
// number of concurrent requests; Refreshing means exactly one refresh
// future is in flight and new 401s join it instead of starting another.
type state int

const (
	stateActive state = iota
	stateRefreshing
)

// Manager owns the current AuthToken for one account and mediates every
// outbound call through it. It is the exclusive owner of the token and
// of the single in-flight refresh, per spec: no other component may
// mutate the token directly.
type Manager struct {
	mu    sync.Mutex
	token provider.AuthToken
	st    state
	// waiters is non-nil exactly while st == stateRefreshing; it is
	// closed once the in-flight refresh settles, waking every goroutine
	// blocked on the shared barrier.
	waiters chan struct{}

	refresh    Refresher
	attach     AttachFunc
	onUpdated  OnTokenUpdated
}

// NewManager constructs a Manager seeded with the account's current
// token. refresh performs the provider-specific refresh call; attach
// writes the token onto an outbound request; onUpdated is the
// persistence callback (wired to Settings by the Account Manager).
func NewManager(initial provider.AuthToken, refresh Refresher, attach AttachFunc, onUpdated OnTokenUpdated) *Manager {
	return &Manager{
		token:     initial,
		st:        stateActive,
		refresh:   refresh,
		attach:    attach,
		onUpdated: onUpdated,
	}
}

// currentToken returns a snapshot of the token under lock.
func (m *Manager) currentToken() provider.AuthToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Fetch attaches the current token to do's request, issues it via do,
// and on a 401 awaits (or starts) the shared refresh before retrying
// exactly once with the fresh token. A second 401 after that retry
// surfaces Unauthorized without triggering another refresh cycle for
// this call — only the first 401 of any concurrent batch starts a new
// refresh future.
func (m *Manager) Fetch(ctx context.Context, req *http.Request, do func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	used := m.currentToken()
	m.attach(req, used)
	resp, err := do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return resp, nil
		}
		body := readAndClose(resp)
		return nil, &errs.HttpError{Status: resp.StatusCode, Body: body}
	}
	resp.Body.Close()

	if err := m.awaitRefresh(ctx, used); err != nil {
		return nil, errs.Unauthorized(err.Error())
	}

	retryReq, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	m.attach(retryReq, m.currentToken())
	resp2, err := do(retryReq)
	if err != nil {
		return nil, err
	}
	if resp2.StatusCode == http.StatusUnauthorized {
		resp2.Body.Close()
		return nil, errs.Unauthorized("request rejected after token refresh")
	}
	if resp2.StatusCode >= 200 && resp2.StatusCode < 400 {
		return resp2, nil
	}
	body := readAndClose(resp2)
	return nil, &errs.HttpError{Status: resp2.StatusCode, Body: body}
}

// awaitRefresh ensures exactly one refresh is in flight and blocks the
// caller until it settles. The first caller to observe stateActive
// transitions the Manager to stateRefreshing and performs the refresh
// itself; every other concurrent caller just waits on the same channel.
// A caller whose rejected request carried a token (used) that a finished
// refresh has already replaced returns at once without refreshing again.
func (m *Manager) awaitRefresh(ctx context.Context, used provider.AuthToken) error {
	m.mu.Lock()
	if m.st == stateRefreshing {
		wait := m.waiters
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
			return nil
		}
	}
	if m.token.TypeTag != used.TypeTag || !bytes.Equal(m.token.Blob, used.Blob) {
		m.mu.Unlock()
		return nil
	}

	m.st = stateRefreshing
	done := make(chan struct{})
	m.waiters = done
	stale := m.token
	m.mu.Unlock()

	newToken, refreshErr := m.refresh(ctx, stale)

	m.mu.Lock()
	if refreshErr == nil {
		m.token = newToken
	}
	m.mu.Unlock()

	// onUpdated must run before any waiter is released, so every
	// concurrent retry observes the persisted token.
	if refreshErr == nil && m.onUpdated != nil {
		m.onUpdated(ctx, newToken)
	}

	m.mu.Lock()
	m.st = stateActive
	m.waiters = nil
	m.mu.Unlock()
	close(done)

	return refreshErr
}

func cloneRequest(ctx context.Context, orig *http.Request) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, orig.Method, orig.URL.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range orig.Header {
		req.Header[k] = v
	}
	return req, nil
}

func readAndClose(resp *http.Response) []byte {
	defer resp.Body.Close()
	buf := make([]byte, 0, 512)
	tmp := make([]byte, 512)
	for {
		n, err := resp.Body.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	return buf
}
