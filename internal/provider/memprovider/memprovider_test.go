package memprovider

import (
	"bytes"
	"context"
	"testing"

	"github.com/cloudgate/cloudgate/internal/provider"
)

func TestToJSONFromJSONRoundTrip(t *testing.T) {
	p := New("tester")
	ctx := context.Background()
	root, _ := p.GetRoot(ctx)
	file, err := p.CreateFile(ctx, root, "a.txt", bytes.NewReader([]byte("hello")), 5)
	if err != nil {
		t.Fatal(err)
	}

	j, err := p.ToJSON(file)
	if err != nil {
		t.Fatal(err)
	}
	back, err := p.FromJSON(j)
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != file.ID || back.Name != file.Name || *back.Size != *file.Size {
		t.Errorf("round trip mismatch: got %+v, want %+v", back, file)
	}
}

func TestListDirectoryPagePaginationCoversAllItems(t *testing.T) {
	p := New("tester")
	p.PageSize = 2
	ctx := context.Background()
	root, _ := p.GetRoot(ctx)

	want := map[provider.ID]bool{}
	for i := 0; i < 5; i++ {
		it, err := p.CreateFile(ctx, root, "f", bytes.NewReader([]byte("x")), 1)
		if err != nil {
			t.Fatal(err)
		}
		want[it.ID] = true
	}

	seen := map[provider.ID]bool{}
	token := ""
	for {
		page, err := p.ListDirectoryPage(ctx, root, token)
		if err != nil {
			t.Fatal(err)
		}
		for _, it := range page.Items {
			seen[it.ID] = true
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	if len(seen) != len(want) {
		t.Fatalf("expected to see %d items across pages, saw %d", len(want), len(seen))
	}
	for id := range want {
		if !seen[id] {
			t.Errorf("item %s never appeared in any page", id)
		}
	}
}

func TestMkcolThenPropfindIncludesChild(t *testing.T) {
	p := New("tester")
	ctx := context.Background()
	root, _ := p.GetRoot(ctx)
	dir, err := p.CreateDirectory(ctx, root, "d")
	if err != nil {
		t.Fatal(err)
	}
	page, err := p.ListDirectoryPage(ctx, root, "")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, it := range page.Items {
		if it.ID == dir.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected created directory to appear in parent listing")
	}
}

func TestPutThenGetReturnsExactBytes(t *testing.T) {
	p := New("tester")
	ctx := context.Background()
	root, _ := p.GetRoot(ctx)
	payload := []byte("the quick brown fox")
	file, err := p.CreateFile(ctx, root, "f.bin", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatal(err)
	}
	content, err := p.GetFileContent(ctx, file, provider.Range{Start: 0, End: nil})
	if err != nil {
		t.Fatal(err)
	}
	defer content.Body.Close()
	buf := new(bytes.Buffer)
	buf.ReadFrom(content.Body)
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Errorf("got %q, want %q", buf.Bytes(), payload)
	}
}

func TestDeleteThenGetReturnsNotFound(t *testing.T) {
	p := New("tester")
	ctx := context.Background()
	root, _ := p.GetRoot(ctx)
	file, err := p.CreateFile(ctx, root, "f.bin", bytes.NewReader([]byte("x")), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Remove(ctx, file); err != nil {
		t.Fatal(err)
	}
	_, err = p.GetFileContent(ctx, file, provider.Range{})
	if err == nil {
		t.Fatal("expected NotFound after delete")
	}
}

func TestRangeLength(t *testing.T) {
	p := New("tester")
	ctx := context.Background()
	root, _ := p.GetRoot(ctx)
	payload := make([]byte, 1000)
	file, err := p.CreateFile(ctx, root, "big.bin", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatal(err)
	}
	end := int64(199)
	rng := provider.Range{Start: 100, End: &end}
	content, err := p.GetFileContent(ctx, file, rng)
	if err != nil {
		t.Fatal(err)
	}
	defer content.Body.Close()
	if content.ContentLength != 100 {
		t.Errorf("expected 100 bytes, got %d", content.ContentLength)
	}
	if rng.Length(1000) != 100 {
		t.Errorf("Range.Length mismatch: %d", rng.Length(1000))
	}
}
