package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// cachedResponse is a fully-buffered snapshot of a prior response, kept
// only for idempotent GETs where replaying bytes from memory is safe.
type cachedResponse struct {
	status     int
	header     http.Header
	body       []byte
	expiresAt  time.Time
}

func (c *cachedResponse) expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && now.After(c.expiresAt)
}

// CachingClient decorates an *http.Client, serving repeat GET requests
// for the same URL out of an in-process cache instead of re-issuing them
// upstream. It exists for the small, frequently-repeated metadata calls
// (general data, small directory listings) that the Abstract Provider
// layer issues far more often than the underlying data actually changes;
// the Cache Manager's stale-first persistence handles the larger,
// durable caching story, this is the thin in-memory layer underneath it.
//
// Only GET and HEAD are ever cached, since those are the only methods
// the HTTP Client Facade treats as idempotent; everything else always
// goes straight to the underlying client.
type CachingClient struct {
	Client *http.Client
	TTL    time.Duration

	mu    sync.RWMutex
	store map[string]*cachedResponse
}

// NewCachingClient wraps client with a cache that holds entries for ttl.
func NewCachingClient(client *http.Client, ttl time.Duration) *CachingClient {
	if client == nil {
		client = Default()
	}
	return &CachingClient{
		Client: client,
		TTL:    ttl,
		store:  make(map[string]*cachedResponse),
	}
}

func cacheKey(method, url string) string { return method + " " + url }

// Do serves req from cache when method is GET/HEAD and a fresh entry
// exists; otherwise it performs the request and, for cacheable methods
// with a 200 response, stores a snapshot for next time.
func (c *CachingClient) Do(req *http.Request) (*http.Response, error) {
	cacheable := req.Method == http.MethodGet || req.Method == http.MethodHead
	key := cacheKey(req.Method, req.URL.String())

	if cacheable {
		c.mu.RLock()
		entry, ok := c.store[key]
		c.mu.RUnlock()
		if ok && !entry.expired(time.Now()) {
			return entry.toResponse(req), nil
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if cacheable && resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		entry := &cachedResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: body}
		if c.TTL > 0 {
			entry.expiresAt = time.Now().Add(c.TTL)
		}
		c.mu.Lock()
		c.store[key] = entry
		c.mu.Unlock()
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	return resp, nil
}

// Invalidate drops any cached entry for method+url, used after a write
// (PUT/MKCOL/DELETE/MOVE) that would otherwise leave a stale GET cached.
func (c *CachingClient) Invalidate(method, url string) {
	c.mu.Lock()
	delete(c.store, cacheKey(method, url))
	c.mu.Unlock()
}

func (entry *cachedResponse) toResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    entry.status,
		Status:        http.StatusText(entry.status),
		Header:        entry.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(entry.body)),
		ContentLength: int64(len(entry.body)),
		Request:       req,
	}
}

// DoWithRetryCached is the cached-GET analogue of DoWithRetry: it first
// consults the CachingClient, falling back to a retried live call when
// the entry is missing or expired. ctx is accepted for symmetry with the
// rest of the facade even though the cache hit path never blocks.
func DoWithRetryCached(ctx context.Context, cc *CachingClient, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return DoWithRetry(ctx, cc.Client, req, policy)
	}
	key := cacheKey(req.Method, req.URL.String())
	cc.mu.RLock()
	entry, ok := cc.store[key]
	cc.mu.RUnlock()
	if ok && !entry.expired(time.Now()) {
		return entry.toResponse(req), nil
	}

	resp, err := DoWithRetry(ctx, cc.Client, req, policy)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		e := &cachedResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: body}
		if cc.TTL > 0 {
			e.expiresAt = time.Now().Add(cc.TTL)
		}
		cc.mu.Lock()
		cc.store[key] = e
		cc.mu.Unlock()
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}
