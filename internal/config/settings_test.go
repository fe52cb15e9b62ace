package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cloudgate/cloudgate/internal/provider"
)

func newTestSettings(t *testing.T) *Settings {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	edb, err := Open(dbPath, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { edb.Close() })
	s, err := NewSettings(edb)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPutTokenThenListTokensRoundTrips(t *testing.T) {
	s := newTestSettings(t)
	ctx := context.Background()
	err := s.PutToken(ctx, "google test@gmail.com", provider.AuthToken{TypeTag: "google", Blob: []byte("tok")})
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := s.ListTokens(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 1 || tokens[0].AccountID != "google test@gmail.com" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
}

func TestRemoveTokenDeletesRow(t *testing.T) {
	s := newTestSettings(t)
	ctx := context.Background()
	s.PutToken(ctx, "id1", provider.AuthToken{TypeTag: "local", Blob: []byte("x")})
	if err := s.RemoveToken(ctx, "id1"); err != nil {
		t.Fatal(err)
	}
	tokens, _ := s.ListTokens(ctx)
	if len(tokens) != 0 {
		t.Fatalf("expected no tokens after removal, got %d", len(tokens))
	}
}

func TestPublicNetworkDefaultsFalse(t *testing.T) {
	s := newTestSettings(t)
	on, err := s.PublicNetwork(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if on {
		t.Error("expected public_network to default false")
	}
}

func TestSetHostSetRejectsInvalidHostPort(t *testing.T) {
	s := newTestSettings(t)
	if err := s.SetHostSet(context.Background(), "not-a-hostport"); err == nil {
		t.Error("expected error for invalid host:port")
	}
}

func TestSetHostSetAcceptsValidHostPort(t *testing.T) {
	s := newTestSettings(t)
	if err := s.SetHostSet(context.Background(), "127.0.0.1:8080"); err != nil {
		t.Fatal(err)
	}
	got, err := s.HostSet(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "127.0.0.1:8080" {
		t.Errorf("got %q", got)
	}
}
