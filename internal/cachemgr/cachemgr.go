// Package cachemgr implements the Cache Manager: a persistent,
// process-wide key-value store of (account_type, account_username,
// logical_key) -> value, answering reads stale-first while a background
// task revalidates against the authoritative Provider. Persistence is
// the SQLite table internal/config already migrates; an in-process
// ristretto cache sits in front of it as the hot read-through layer, so
// a key read repeatedly under load doesn't round-trip to SQLite every
// time. Collapsing concurrent background refreshes for the same key
// into one, per spec.md §4.4 and §8 ("at most one background refresh
// task is created per key per get() call"), is a distinct concern and
// is handled separately, by the inFlight map below: ristretto has no
// notion of "join an in-progress computation", only get/set.
package cachemgr

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Value is one stored cache entry: opaque JSON bytes plus the monotonic
// update_time spec.md's CacheEntry requires.
type Value struct {
	Data       []byte
	UpdateTime int64
}

// Key identifies an entry in the (account_type, account_username,
// logical_key) key space spec.md §4.4 defines.
type Key struct {
	AccountType     string
	AccountUsername string
	LogicalKey      string
}

func (k Key) hotKey() string {
	return k.AccountType + "\x00" + k.AccountUsername + "\x00" + k.LogicalKey
}

// RefreshFunc performs the authoritative remote fetch for a key,
// returning the freshly-observed value.
type RefreshFunc func(ctx context.Context) (Value, error)

// Updated is the future spec.md names `updated: Promise<Option<NewValue>>`:
// it resolves once the background refresh completes, carrying the new
// value when it differs from what was cached, or nil when unchanged.
// Err is set if the background fetch itself failed.
type Updated struct {
	ch chan struct{}

	mu      sync.Mutex
	newVal  *Value
	changed bool
	err     error
}

func newUpdated() *Updated { return &Updated{ch: make(chan struct{})} }

func (u *Updated) settle(newVal *Value, changed bool, err error) {
	u.mu.Lock()
	u.newVal, u.changed, u.err = newVal, changed, err
	u.mu.Unlock()
	close(u.ch)
}

// Wait blocks until the background refresh settles, returning the new
// value (nil if the refresh found no change) or the refresh's error.
func (u *Updated) Wait(ctx context.Context) (*Value, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-u.ch:
		u.mu.Lock()
		defer u.mu.Unlock()
		if u.err != nil {
			return nil, u.err
		}
		if !u.changed {
			return nil, nil
		}
		return u.newVal, nil
	}
}

// VersionedValue is the read-path result: the stale-or-fresh cached
// content plus the Updated future for the concurrent authoritative
// refresh, matching spec.md's VersionedDirectoryContent/VersionedItem/
// VersionedThumbnail shape generalized to one type over opaque bytes.
type VersionedValue struct {
	Value   Value
	Present bool
	Updated *Updated
}

// Manager is the persistent Cache Manager. db holds the durable rows and
// remains the source of truth; hot is an in-process read-through layer
// in front of it, populated on every load and store so a hot key is
// served out of memory instead of round-tripping to SQLite. Coalescing
// concurrent background refreshes for the same key is a separate job,
// done by inFlight below.
type Manager struct {
	db  *sql.DB
	hot *ristretto.Cache

	mu           sync.Mutex
	inFlight     map[string]*Updated
	thumbnailTTL time.Duration
}

// ThumbnailTTL is the freshness threshold below which a cached
// thumbnail bypasses the background refresh entirely (spec.md §4.4).
const ThumbnailTTL = 3600 * time.Second

// hotTTL bounds how long a value answers out of the in-process cache
// before load() falls back to SQLite, so a key this process no longer
// touches ages out of memory instead of sitting there indefinitely.
const hotTTL = 10 * time.Minute

// New constructs a Manager over db (already migrated by internal/config)
// with a ristretto hot layer sized for the gateway's working set.
func New(db *sql.DB) (*Manager, error) {
	hot, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 26, // 64 MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Manager{
		db:           db,
		hot:          hot,
		inFlight:     make(map[string]*Updated),
		thumbnailTTL: ThumbnailTTL,
	}, nil
}

// Get returns the cached value for key immediately if present (no
// freshness filter: staleness decisions belong to the caller), and
// starts at most one background refresh per key per call, coalesced
// across concurrent callers via the in-flight map. isThumbnail, when
// true, skips the background refresh if the cached entry is younger
// than ThumbnailTTL.
func (m *Manager) Get(ctx context.Context, key Key, isThumbnail bool, refresh RefreshFunc) (VersionedValue, error) {
	val, present, err := m.load(ctx, key)
	if err != nil {
		return VersionedValue{}, err
	}

	if present && isThumbnail && time.Since(time.Unix(val.UpdateTime, 0)) < m.thumbnailTTL {
		return VersionedValue{Value: val, Present: true, Updated: nil}, nil
	}

	updated := m.startRefresh(ctx, key, val, present, refresh)
	return VersionedValue{Value: val, Present: present, Updated: updated}, nil
}

// startRefresh ensures exactly one background refresh is running for
// key, reusing an in-flight one if a concurrent Get already started it.
func (m *Manager) startRefresh(ctx context.Context, key Key, cached Value, present bool, refresh RefreshFunc) *Updated {
	hk := key.hotKey()

	m.mu.Lock()
	if u, ok := m.inFlight[hk]; ok {
		m.mu.Unlock()
		return u
	}
	u := newUpdated()
	m.inFlight[hk] = u
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.inFlight, hk)
			m.mu.Unlock()
		}()

		fresh, err := refresh(detachedContext(ctx))
		if err != nil {
			u.settle(nil, false, err)
			return
		}
		if present && jsonEqual(cached.Data, fresh.Data) {
			u.settle(nil, false, nil)
			return
		}
		if err := m.store(context.Background(), key, fresh); err != nil {
			u.settle(nil, false, err)
			return
		}
		v := fresh
		u.settle(&v, true, nil)
	}()

	return u
}

// Peek returns the stored value for key with no background refresh and
// no freshness filter, the raw `get(account, key) -> Option<Value>`
// primitive spec.md §4.4 names directly. Callers that already have (or
// don't need) a RefreshFunc — Item(id) lookups populated by whichever
// directory listing last observed the item, since no provider operation
// refreshes a single item by id in isolation — use this instead of Get.
func (m *Manager) Peek(ctx context.Context, key Key) (Value, bool, error) {
	return m.load(ctx, key)
}

// Put overwrites the stored value for key, invalidating any in-flight
// refresh's staleness assumption is unnecessary since refreshes compare
// against what they observed, not what's currently stored.
func (m *Manager) Put(ctx context.Context, key Key, value Value) error {
	return m.store(ctx, key, value)
}

func (m *Manager) load(ctx context.Context, key Key) (Value, bool, error) {
	hk := key.hotKey()
	if cached, ok := m.hot.Get(hk); ok {
		return cached.(Value), true, nil
	}

	var data []byte
	var updateTime int64
	err := m.db.QueryRowContext(ctx, `
		SELECT value_blob, update_time FROM cache_entries
		WHERE account_type = ? AND account_username = ? AND key = ?
	`, key.AccountType, key.AccountUsername, key.LogicalKey).Scan(&data, &updateTime)
	if err == sql.ErrNoRows {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, err
	}

	val := Value{Data: data, UpdateTime: updateTime}
	m.hot.SetWithTTL(hk, val, hotCost(val), hotTTL)
	return val, true, nil
}

func (m *Manager) store(ctx context.Context, key Key, value Value) error {
	if value.UpdateTime == 0 {
		value.UpdateTime = time.Now().Unix()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cache_entries (account_type, account_username, key, value_blob, update_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_type, account_username, key) DO UPDATE SET
			value_blob = excluded.value_blob, update_time = excluded.update_time
	`, key.AccountType, key.AccountUsername, key.LogicalKey, value.Data, value.UpdateTime)
	if err != nil {
		return err
	}
	m.hot.SetWithTTL(key.hotKey(), value, hotCost(value), hotTTL)
	return nil
}

// hotCost estimates a value's weight against the hot cache's MaxCost
// budget; ristretto evicts by cost, not by entry count.
func hotCost(v Value) int64 {
	return int64(len(v.Data)) + 64
}

// jsonEqual compares two JSON-encoded byte slices structurally rather
// than byte-for-byte, since the authoritative fetch and the cached copy
// may serialize map/slice fields in a different order.
func jsonEqual(a, b []byte) bool {
	var av, bv interface{}
	if err := json.Unmarshal(a, &av); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return string(a) == string(b)
	}
	aj, _ := json.Marshal(av)
	bj, _ := json.Marshal(bv)
	return string(aj) == string(bj)
}

// detachedContext strips cancellation from ctx for the background
// refresh: the request that triggered a Get may finish (and its
// context cancel) long before the stale-first background revalidation
// does, but the refresh itself must keep running to populate the cache
// for the next caller.
func detachedContext(ctx context.Context) context.Context {
	return detached{ctx}
}

type detached struct{ context.Context }

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detached) Done() <-chan struct{}       { return nil }
func (detached) Err() error                  { return nil }
