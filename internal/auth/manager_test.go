package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cloudgate/cloudgate/internal/provider"
)

func attachHeader(req *http.Request, token provider.AuthToken) {
	req.Header.Set("Authorization", "Bearer "+string(token.Blob))
}

func TestFetchSucceedsWithoutRefreshWhenTokenValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var refreshCalls int32
	m := NewManager(
		provider.AuthToken{Blob: []byte("good")},
		func(ctx context.Context, stale provider.AuthToken) (provider.AuthToken, error) {
			atomic.AddInt32(&refreshCalls, 1)
			return provider.AuthToken{Blob: []byte("fresh")}, nil
		},
		attachHeader,
		nil,
	)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := m.Fetch(context.Background(), req, srv.Client().Do)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if refreshCalls != 0 {
		t.Errorf("expected no refresh when token is already valid, got %d", refreshCalls)
	}
}

func TestFetchRefreshesOn401AndRetriesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer fresh" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var tokenUpdated provider.AuthToken
	var onUpdatedCalls int32
	m := NewManager(
		provider.AuthToken{Blob: []byte("stale")},
		func(ctx context.Context, stale provider.AuthToken) (provider.AuthToken, error) {
			return provider.AuthToken{Blob: []byte("fresh")}, nil
		},
		attachHeader,
		func(ctx context.Context, newToken provider.AuthToken) {
			atomic.AddInt32(&onUpdatedCalls, 1)
			tokenUpdated = newToken
		},
	)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := m.Fetch(context.Background(), req, srv.Client().Do)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if onUpdatedCalls != 1 {
		t.Errorf("expected onUpdated exactly once, got %d", onUpdatedCalls)
	}
	if string(tokenUpdated.Blob) != "fresh" {
		t.Errorf("expected onUpdated to see fresh token, got %q", tokenUpdated.Blob)
	}
}

func TestFetchSecondConsecutive401SurfacesUnauthorizedWithoutExtraRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var refreshCalls int32
	m := NewManager(
		provider.AuthToken{Blob: []byte("stale")},
		func(ctx context.Context, stale provider.AuthToken) (provider.AuthToken, error) {
			atomic.AddInt32(&refreshCalls, 1)
			return provider.AuthToken{Blob: []byte("still-bad")}, nil
		},
		attachHeader,
		nil,
	)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := m.Fetch(context.Background(), req, srv.Client().Do)
	if err == nil {
		t.Fatal("expected Unauthorized after retry still 401s")
	}
	if refreshCalls != 1 {
		t.Errorf("expected exactly one refresh attempt for this call, got %d", refreshCalls)
	}
}

func TestConcurrent401sShareSingleRefresh(t *testing.T) {
	var validToken atomic.Value
	validToken.Store("fresh")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Bearer " + validToken.Load().(string)
		if r.Header.Get("Authorization") == want {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var refreshCalls int32
	m := NewManager(
		provider.AuthToken{Blob: []byte("stale")},
		func(ctx context.Context, stale provider.AuthToken) (provider.AuthToken, error) {
			atomic.AddInt32(&refreshCalls, 1)
			return provider.AuthToken{Blob: []byte("fresh")}, nil
		},
		attachHeader,
		nil,
	)

	const n = 10
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			resp, err := m.Fetch(context.Background(), req, srv.Client().Do)
			if err != nil {
				errCh <- err
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("unexpected error from concurrent fetch: %v", err)
	}

	if refreshCalls != 1 {
		t.Errorf("expected exactly one refresh across %d concurrent 401s, got %d", n, refreshCalls)
	}
}

func TestFetchSurfacesHttpErrorForNonAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.Copy(w, strings.NewReader("boom"))
	}))
	defer srv.Close()

	m := NewManager(
		provider.AuthToken{Blob: []byte("good")},
		func(ctx context.Context, stale provider.AuthToken) (provider.AuthToken, error) {
			return stale, nil
		},
		attachHeader,
		nil,
	)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := m.Fetch(context.Background(), req, srv.Client().Do)
	if err == nil {
		t.Fatal("expected an HttpError for 500")
	}
}
