package provider

import (
	"context"
	"io"
	"testing"

	"github.com/cloudgate/cloudgate/internal/errs"
)

type stubProvider struct{ typeTag string }

func (s *stubProvider) Type() string { return s.typeTag }
func (s *stubProvider) GetRoot(ctx context.Context) (Item, error) { return Item{}, nil }
func (s *stubProvider) ListDirectoryPage(ctx context.Context, dir Item, pageToken string) (PageData, error) {
	return PageData{}, nil
}
func (s *stubProvider) GetGeneralData(ctx context.Context) (GeneralData, error) { return GeneralData{}, nil }
func (s *stubProvider) GetFileContent(ctx context.Context, file Item, rng Range) (Content, error) {
	return Content{}, nil
}
func (s *stubProvider) CreateDirectory(ctx context.Context, parent Item, name string) (Item, error) {
	return Item{}, nil
}
func (s *stubProvider) CreateFile(ctx context.Context, parent Item, name string, content io.Reader, size int64) (Item, error) {
	return Item{}, nil
}
func (s *stubProvider) Rename(ctx context.Context, item Item, newName string) (Item, error) { return Item{}, nil }
func (s *stubProvider) Move(ctx context.Context, item Item, destinationDir Item) (Item, error) {
	return Item{}, nil
}
func (s *stubProvider) Remove(ctx context.Context, item Item) error { return nil }
func (s *stubProvider) GetThumbnail(ctx context.Context, item Item, quality ThumbnailQuality, rng Range) (Thumbnail, error) {
	return Thumbnail{}, nil
}
func (s *stubProvider) ToJSON(item Item) ([]byte, error)      { return nil, nil }
func (s *stubProvider) FromJSON(data []byte) (Item, error)    { return Item{}, nil }
func (s *stubProvider) IsFileContentSizeRequired(ctx context.Context, dir Item) bool { return false }

func TestRegistryCreateUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(context.Background(), "nosuch", AuthToken{})
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if errs.HTTPStatus(err) != 400 {
		t.Errorf("unknown type should map to Invalid/400, got status %d", errs.HTTPStatus(err))
	}
}

func TestRegistryStubReturnsUnsupported(t *testing.T) {
	r := NewRegistry()
	r.RegisterStub("box")
	_, err := r.Create(context.Background(), "box", AuthToken{})
	if err == nil {
		t.Fatal("expected Unsupported error")
	}
	if errs.HTTPStatus(err) != 500 {
		t.Errorf("unsupported stub should map through default 500, got %d", errs.HTTPStatus(err))
	}
}

func TestRegistryTypesListsRegistered(t *testing.T) {
	r := NewRegistry()
	r.RegisterStub("box")
	r.Register("local", func(ctx context.Context, token AuthToken) (Provider, error) {
		return &stubProvider{typeTag: "local"}, nil
	})
	types := r.Types()
	if len(types) != 2 {
		t.Fatalf("expected 2 types, got %d: %v", len(types), types)
	}
}
