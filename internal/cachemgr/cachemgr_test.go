package cachemgr

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`CREATE TABLE cache_entries (
		account_type TEXT NOT NULL,
		account_username TEXT NOT NULL,
		key TEXT NOT NULL,
		value_blob BLOB NOT NULL,
		update_time INTEGER NOT NULL,
		PRIMARY KEY (account_type, account_username, key)
	)`); err != nil {
		t.Fatal(err)
	}
	m, err := New(db)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPutThenGetReturnsSameUpdateTime(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key{AccountType: "local", AccountUsername: "alice", LogicalKey: "Item(root)"}
	v := Value{Data: []byte(`{"a":1}`), UpdateTime: 1000}

	if err := m.Put(ctx, key, v); err != nil {
		t.Fatal(err)
	}

	vv, err := m.Get(ctx, key, false, func(ctx context.Context) (Value, error) { return v, nil })
	if err != nil {
		t.Fatal(err)
	}
	if !vv.Present {
		t.Fatal("expected value to be present")
	}
	if vv.Value.UpdateTime != 1000 {
		t.Errorf("expected update_time 1000, got %d", vv.Value.UpdateTime)
	}
}

func TestGetStartsExactlyOneBackgroundRefreshAcrossConcurrentCalls(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key{AccountType: "local", AccountUsername: "alice", LogicalKey: "Item(x)"}

	var refreshCalls int32
	refresh := func(ctx context.Context) (Value, error) {
		atomic.AddInt32(&refreshCalls, 1)
		time.Sleep(20 * time.Millisecond)
		return Value{Data: []byte(`{"b":2}`)}, nil
	}

	const n = 5
	updates := make([]*Updated, n)
	for i := 0; i < n; i++ {
		vv, err := m.Get(ctx, key, false, refresh)
		if err != nil {
			t.Fatal(err)
		}
		updates[i] = vv.Updated
	}
	for _, u := range updates {
		if _, err := u.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if refreshCalls != 1 {
		t.Errorf("expected exactly 1 background refresh across %d Get calls, got %d", n, refreshCalls)
	}
}

func TestUpdatedResolvesNoneWhenUnchanged(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key{AccountType: "local", AccountUsername: "alice", LogicalKey: "Item(same)"}
	same := Value{Data: []byte(`{"same":true}`)}
	if err := m.Put(ctx, key, same); err != nil {
		t.Fatal(err)
	}

	vv, err := m.Get(ctx, key, false, func(ctx context.Context) (Value, error) { return same, nil })
	if err != nil {
		t.Fatal(err)
	}
	newVal, err := vv.Updated.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if newVal != nil {
		t.Error("expected Updated to resolve to nil when the refresh matches the cached value")
	}
}

func TestThumbnailWithinTTLSkipsBackgroundRefresh(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key{AccountType: "google", AccountUsername: "bob", LogicalKey: "Image(x,low)"}
	fresh := Value{Data: []byte("thumb-bytes"), UpdateTime: time.Now().Unix()}
	if err := m.Put(ctx, key, fresh); err != nil {
		t.Fatal(err)
	}

	var refreshCalls int32
	vv, err := m.Get(ctx, key, true, func(ctx context.Context) (Value, error) {
		atomic.AddInt32(&refreshCalls, 1)
		return fresh, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if vv.Updated != nil {
		t.Error("expected no background refresh for a fresh thumbnail")
	}
	if refreshCalls != 0 {
		t.Errorf("expected 0 refresh calls, got %d", refreshCalls)
	}
}
