package account

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/config"
	"github.com/cloudgate/cloudgate/internal/provider"
	"github.com/cloudgate/cloudgate/internal/provider/memprovider"
)

func newTestManager(t *testing.T, makeHandlers HandlerFactory, lifecycle Lifecycle) *Manager {
	t.Helper()

	reg := provider.NewRegistry()
	reg.Register("memory", memprovider.Factory("alice@example.com"))

	dbPath := filepath.Join(t.TempDir(), "test.db")
	edb, err := config.Open(dbPath, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { edb.Close() })
	settings, err := config.NewSettings(edb)
	if err != nil {
		t.Fatal(err)
	}

	cacheDB, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cacheDB.Close() })
	if _, err := cacheDB.Exec(`CREATE TABLE cache_entries (
		account_type TEXT NOT NULL,
		account_username TEXT NOT NULL,
		key TEXT NOT NULL,
		value_blob BLOB NOT NULL,
		update_time INTEGER NOT NULL,
		PRIMARY KEY (account_type, account_username, key)
	)`); err != nil {
		t.Fatal(err)
	}
	cache, err := cachemgr.New(cacheDB)
	if err != nil {
		t.Fatal(err)
	}

	return NewManager(reg, settings, cache, makeHandlers, lifecycle)
}

func TestCreateAccountComputesIDFromGeneralData(t *testing.T) {
	m := newTestManager(t, nil, Lifecycle{})
	acc, err := m.CreateAccount(context.Background(), "memory", provider.AuthToken{TypeTag: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if acc.ID() != "[memory] alice@example.com" {
		t.Errorf("unexpected account id: %s", acc.ID())
	}
	if _, ok := m.Get(acc.ID()); !ok {
		t.Error("expected account to be retrievable after creation")
	}
}

func TestCreateAccountPersistsToken(t *testing.T) {
	m := newTestManager(t, nil, Lifecycle{})
	acc, err := m.CreateAccount(context.Background(), "memory", provider.AuthToken{TypeTag: "memory", Blob: []byte("tok")})
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := m.settings.ListTokens(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 1 || tokens[0].AccountID != acc.ID() {
		t.Fatalf("unexpected persisted tokens: %+v", tokens)
	}
}

func TestCreateAccountUpsertsOnSameID(t *testing.T) {
	created := 0
	m := newTestManager(t, nil, Lifecycle{OnCreate: func(acc *Account) { created++ }})

	first, err := m.CreateAccount(context.Background(), "memory", provider.AuthToken{TypeTag: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.CreateAccount(context.Background(), "memory", provider.AuthToken{TypeTag: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID() != second.ID() {
		t.Fatal("expected same account id across re-auth")
	}
	if second.CreatedVersion <= first.CreatedVersion {
		t.Error("expected re-auth to produce a newer generation")
	}
	if created != 2 {
		t.Errorf("expected OnCreate to fire twice, got %d", created)
	}

	select {
	case <-first.stopCtx.Done():
	default:
		t.Error("expected the superseded account's stop scope to be cancelled")
	}
}

func TestRemoveAccountRunsDestructionProtocol(t *testing.T) {
	var destroyedID string
	m := newTestManager(t, nil, Lifecycle{
		OnDestroy: func(ctx context.Context, acc *Account) error {
			destroyedID = acc.ID()
			return nil
		},
	})
	acc, err := m.CreateAccount(context.Background(), "memory", provider.AuthToken{TypeTag: "memory"})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.RemoveAccount(context.Background(), acc.ID()); err != nil {
		t.Fatal(err)
	}
	if destroyedID != acc.ID() {
		t.Errorf("expected OnDestroy to be called with %s, got %s", acc.ID(), destroyedID)
	}
	if _, ok := m.Get(acc.ID()); ok {
		t.Error("expected account to be gone after removal")
	}
	tokens, _ := m.settings.ListTokens(context.Background())
	if len(tokens) != 0 {
		t.Errorf("expected token to be removed, found %+v", tokens)
	}
}

func TestRemoveAccountUnknownIDReturnsNotFound(t *testing.T) {
	m := newTestManager(t, nil, Lifecycle{})
	err := m.RemoveAccount(context.Background(), "[memory] nobody")
	if err == nil {
		t.Fatal("expected error for unknown account id")
	}
}

func TestRouteLongestPrefixWins(t *testing.T) {
	makeHandlers := func(acc *Account) map[string]http.Handler {
		prefix := acc.URLPrefix()
		return map[string]http.Handler{
			prefix:           http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("account")) }),
			prefix + "/deep": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("deep")) }),
		}
	}
	m := newTestManager(t, makeHandlers, Lifecycle{})
	acc, err := m.CreateAccount(context.Background(), "memory", provider.AuthToken{TypeTag: "memory"})
	if err != nil {
		t.Fatal(err)
	}

	h, ok := m.Route(acc.URLPrefix() + "/deep/file.txt")
	if !ok {
		t.Fatal("expected a route match")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Body.String() != "deep" {
		t.Errorf("expected longest-prefix handler to win, got %q", rec.Body.String())
	}
}

func TestRouteUnregisteredAfterRemoval(t *testing.T) {
	makeHandlers := func(acc *Account) map[string]http.Handler {
		return map[string]http.Handler{
			acc.URLPrefix(): http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		}
	}
	m := newTestManager(t, makeHandlers, Lifecycle{})
	acc, err := m.CreateAccount(context.Background(), "memory", provider.AuthToken{TypeTag: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Route(acc.URLPrefix()); !ok {
		t.Fatal("expected route present before removal")
	}
	if err := m.RemoveAccount(context.Background(), acc.ID()); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Route(acc.URLPrefix()); ok {
		t.Error("expected route to be gone after removal")
	}
}
