package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/config"
	"github.com/cloudgate/cloudgate/internal/media"
	"github.com/cloudgate/cloudgate/internal/provider"
	"github.com/cloudgate/cloudgate/internal/provider/memprovider"
)

// newTestHandlers wires a full Handlers over a fresh memory-provider
// account, plus the same chi routes internal/server registers in the
// real build, so these tests exercise the production route-parameter
// shapes.
func newTestHandlers(t *testing.T) (*Handlers, *account.Account, http.Handler) {
	t.Helper()

	reg := provider.NewRegistry()
	reg.Register("memory", memprovider.Factory("alice@example.com"))

	dbPath := filepath.Join(t.TempDir(), "settings.db")
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

	mgr := account.NewManager(reg, settings, cache, nil, account.Lifecycle{})
	h := New(mgr, reg, settings, cache, media.NewPool(2), media.ImageThumbnailer{})

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/", http.HandlerFunc(h.Home))
	r.Method(http.MethodOptions, "/", http.HandlerFunc(h.Home))
	r.Method("PROPFIND", "/", http.HandlerFunc(h.Home))
	r.Get("/auth/{type}", h.Auth)
	r.Get("/remove/{id}", h.Remove)
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

	acc, err := mgr.CreateAccount(t.Context(), "memory", provider.AuthToken{TypeTag: "none"})
	if err != nil {
		t.Fatal(err)
	}
	return h, acc, r
}

func TestHomeListsAccount(t *testing.T) {
	_, acc, handler := newTestHandlers(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), acc.ID()) {
		t.Errorf("home page missing account id %q: %s", acc.ID(), rr.Body.String())
	}
}

func TestHomeOptionsAdvertisesDAV(t *testing.T) {
	_, _, handler := newTestHandlers(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("DAV") == "" {
		t.Error("expected a DAV header")
	}
}

func TestListRootThenContentRoundTrips(t *testing.T) {
	_, acc, handler := newTestHandlers(t)
	ctx := t.Context()

	root, err := acc.Provider.GetRoot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	file, err := acc.Provider.CreateFile(ctx, root, "hello.txt", strings.NewReader("hello world"), 11)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/list/memory/alice%40example.com", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "hello.txt") {
		t.Fatalf("listing missing hello.txt: %s", rr.Body.String())
	}

	rr2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/content/memory/alice%40example.com/"+itemPath(file.ID), nil)
	handler.ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusOK {
		t.Fatalf("content status = %d: %s", rr2.Code, rr2.Body.String())
	}
	if rr2.Body.String() != "hello world" {
		t.Errorf("content body = %q, want %q", rr2.Body.String(), "hello world")
	}
}

func TestContentRangeRequest(t *testing.T) {
	_, acc, handler := newTestHandlers(t)
	ctx := t.Context()

	root, _ := acc.Provider.GetRoot(ctx)
	file, err := acc.Provider.CreateFile(ctx, root, "range.bin", strings.NewReader("0123456789"), 10)
	if err != nil {
		t.Fatal(err)
	}

	// populate the Item(id) cache via a listing, the same way a browser
	// would have discovered the id before requesting its content.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/list/memory/alice%40example.com", nil))

	req := httptest.NewRequest(http.MethodGet, "/content/memory/alice%40example.com/"+itemPath(file.ID), nil)
	req.Header.Set("Range", "bytes=2-5")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}
	if rr.Body.String() != "2345" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "2345")
	}
}

func TestThumbnailFallsBackToGeneratedImage(t *testing.T) {
	_, acc, handler := newTestHandlers(t)
	ctx := t.Context()

	root, _ := acc.Provider.GetRoot(ctx)
	png := onePixelPNG
	file, err := acc.Provider.CreateFile(ctx, root, "pic.png", strings.NewReader(string(png)), int64(len(png)))
	if err != nil {
		t.Fatal(err)
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/list/memory/alice%40example.com", nil))

	req := httptest.NewRequest(http.MethodGet, "/thumbnail/memory/alice%40example.com/"+itemPath(file.ID), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("content type = %q", rr.Header().Get("Content-Type"))
	}
	if rr.Body.Len() == 0 {
		t.Error("expected non-empty thumbnail bytes")
	}
}

func TestThumbnailFallsBackToIconOnUnrecognizedContent(t *testing.T) {
	_, acc, handler := newTestHandlers(t)
	ctx := t.Context()

	root, _ := acc.Provider.GetRoot(ctx)
	file, err := acc.Provider.CreateFile(ctx, root, "note.txt", strings.NewReader("not an image"), 12)
	if err != nil {
		t.Fatal(err)
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/list/memory/alice%40example.com", nil))

	req := httptest.NewRequest(http.MethodGet, "/thumbnail/memory/alice%40example.com/"+itemPath(file.ID), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 icon redirect: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); !strings.Contains(loc, "unknown") {
		t.Errorf("Location = %q, want the unknown-MIME icon", loc)
	}
}

func TestSizeReportsGeneralData(t *testing.T) {
	_, acc, handler := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/size?account_type="+acc.Type+"&account_username="+url.QueryEscape(acc.Username), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Type"), "application/json") {
		t.Errorf("content type = %q", rr.Header().Get("Content-Type"))
	}
}

func TestRemoveThenAccountGone(t *testing.T) {
	_, acc, handler := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/remove/"+url.PathEscape(acc.ID()), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d", rr.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/list/memory/alice%40example.com", nil)
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after removal, got %d", rr2.Code)
	}
}

func TestMuxWithoutMuxerReportsUnsupported(t *testing.T) {
	_, _, handler := newTestHandlers(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mux", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want Unsupported's mapped 500", rr.Code)
	}
}

func TestSettingsPageRendersAndHostSetPersists(t *testing.T) {
	_, _, handler := newTestHandlers(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/settings", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	form := strings.NewReader("host_port=127.0.0.1%3A9999")
	req := httptest.NewRequest(http.MethodPost, "/settings/host-set", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req)
	if rr2.Code != http.StatusFound {
		t.Fatalf("status = %d: %s", rr2.Code, rr2.Body.String())
	}
}

func TestQuitTearsDownEveryAccount(t *testing.T) {
	_, _, handler := newTestHandlers(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/quit", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/list/memory/alice%40example.com", nil))
	if rr2.Code != http.StatusNotFound {
		t.Fatalf("expected the account to be torn down, got %d", rr2.Code)
	}
}

// onePixelPNG is a fixed, well-known 1x1 transparent PNG the thumbnail
// generation path can decode.
var onePixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
