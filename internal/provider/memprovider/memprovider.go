// Package memprovider is an in-memory Provider implementation used to
// exercise the Abstract Provider contract in tests without any network
// access, the same role the teacher's rclone package plays as "the
// reference implementation" but entirely local.
package memprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

type node struct {
	item     provider.Item
	parent   provider.ID
	content  []byte
	children []provider.ID // directories only, insertion order
}

// Provider is a fully in-memory backend. Safe for concurrent use.
type Provider struct {
	mu       sync.RWMutex
	nodes    map[provider.ID]*node
	rootID   provider.ID
	username string
	nextID   int
	// PageSize caps ListDirectoryPage results per call, to exercise
	// pagination even with small fixtures.
	PageSize int
}

// New creates an empty in-memory provider with just a root directory.
func New(username string) *Provider {
	p := &Provider{
		nodes:    make(map[provider.ID]*node),
		username: username,
		rootID:   "root",
		PageSize: 100,
	}
	p.nodes[p.rootID] = &node{
		item: provider.Item{Kind: provider.KindDirectory, ID: p.rootID, Name: ""},
	}
	return p
}

// Factory adapts New into a provider.Factory for registry wiring in tests.
func Factory(username string) provider.Factory {
	return func(ctx context.Context, token provider.AuthToken) (provider.Provider, error) {
		return New(username), nil
	}
}

func (p *Provider) Type() string { return "memory" }

func (p *Provider) GetRoot(ctx context.Context) (provider.Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nodes[p.rootID].item, nil
}

func (p *Provider) GetGeneralData(ctx context.Context) (provider.GeneralData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return provider.GeneralData{Username: p.username}, nil
}

func (p *Provider) ListDirectoryPage(ctx context.Context, dir provider.Item, pageToken string) (provider.PageData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n, ok := p.nodes[dir.ID]
	if !ok || n.item.Kind != provider.KindDirectory {
		return provider.PageData{}, errs.NotFound(string(dir.ID))
	}

	start := 0
	if pageToken != "" {
		for i, id := range n.children {
			if string(id) == pageToken {
				start = i
				break
			}
		}
	}
	end := start + p.PageSize
	if end > len(n.children) {
		end = len(n.children)
	}

	items := make([]provider.Item, 0, end-start)
	for _, id := range n.children[start:end] {
		items = append(items, p.nodes[id].item)
	}

	var next string
	if end < len(n.children) {
		next = string(n.children[end])
	}
	return provider.PageData{Items: items, NextPageToken: next}, nil
}

func (p *Provider) GetFileContent(ctx context.Context, file provider.Item, rng provider.Range) (provider.Content, error) {
	p.mu.RLock()
	n, ok := p.nodes[file.ID]
	p.mu.RUnlock()
	if !ok || n.item.Kind != provider.KindFile {
		return provider.Content{}, errs.NotFound(string(file.ID))
	}

	total := int64(len(n.content))
	end := rng.ResolveEnd(total)
	if rng.Start < 0 || rng.Start > end || end >= total {
		if rng.Start == 0 && rng.End == nil {
			end = total - 1
		} else {
			return provider.Content{}, errs.Invalid("range not satisfiable")
		}
	}
	slice := n.content[rng.Start : end+1]
	return provider.Content{
		Body:          io.NopCloser(bytes.NewReader(slice)),
		ContentLength: int64(len(slice)),
	}, nil
}

func (p *Provider) CreateDirectory(ctx context.Context, parent provider.Item, name string) (provider.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pn, ok := p.nodes[parent.ID]
	if !ok || pn.item.Kind != provider.KindDirectory {
		return provider.Item{}, errs.NotFound(string(parent.ID))
	}
	id := p.allocID()
	item := provider.Item{Kind: provider.KindDirectory, ID: id, Name: name}
	p.nodes[id] = &node{item: item, parent: parent.ID}
	pn.children = append(pn.children, id)
	return item, nil
}

func (p *Provider) CreateFile(ctx context.Context, parent provider.Item, name string, content io.Reader, size int64) (provider.Item, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return provider.Item{}, &errs.Io{Op: "create_file", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pn, ok := p.nodes[parent.ID]
	if !ok || pn.item.Kind != provider.KindDirectory {
		return provider.Item{}, errs.NotFound(string(parent.ID))
	}
	id := p.allocID()
	now := time.Now()
	sz := int64(len(data))
	item := provider.Item{Kind: provider.KindFile, ID: id, Name: name, Size: &sz, Timestamp: &now}
	p.nodes[id] = &node{item: item, parent: parent.ID, content: data}
	pn.children = append(pn.children, id)
	return item, nil
}

func (p *Provider) Rename(ctx context.Context, item provider.Item, newName string) (provider.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[item.ID]
	if !ok {
		return provider.Item{}, errs.NotFound(string(item.ID))
	}
	n.item.Name = newName
	return n.item, nil
}

func (p *Provider) Move(ctx context.Context, item provider.Item, destinationDir provider.Item) (provider.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[item.ID]
	if !ok {
		return provider.Item{}, errs.NotFound(string(item.ID))
	}
	dest, ok := p.nodes[destinationDir.ID]
	if !ok || dest.item.Kind != provider.KindDirectory {
		return provider.Item{}, errs.NotFound(string(destinationDir.ID))
	}
	old, ok := p.nodes[n.parent]
	if ok {
		old.children = removeID(old.children, item.ID)
	}
	dest.children = append(dest.children, item.ID)
	n.parent = destinationDir.ID
	return n.item, nil
}

func (p *Provider) Remove(ctx context.Context, item provider.Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(item.ID)
}

func (p *Provider) removeLocked(id provider.ID) error {
	n, ok := p.nodes[id]
	if !ok {
		return errs.NotFound(string(id))
	}
	// Directories are removed recursively.
	for _, child := range append([]provider.ID{}, n.children...) {
		if err := p.removeLocked(child); err != nil {
			return err
		}
	}
	if parent, ok := p.nodes[n.parent]; ok {
		parent.children = removeID(parent.children, id)
	}
	delete(p.nodes, id)
	return nil
}

func (p *Provider) GetThumbnail(ctx context.Context, item provider.Item, quality provider.ThumbnailQuality, rng provider.Range) (provider.Thumbnail, error) {
	return provider.Thumbnail{}, errs.NotFound("memory provider has no native thumbnails")
}

type jsonItem struct {
	Kind      provider.ItemKind `json:"kind"`
	ID        provider.ID       `json:"id"`
	Name      string            `json:"name"`
	Size      *int64            `json:"size,omitempty"`
	MimeType  string            `json:"mime_type,omitempty"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
}

func (p *Provider) ToJSON(item provider.Item) ([]byte, error) {
	return json.Marshal(jsonItem{
		Kind: item.Kind, ID: item.ID, Name: item.Name,
		Size: item.Size, MimeType: item.MimeType, Timestamp: item.Timestamp,
	})
}

func (p *Provider) FromJSON(data []byte) (provider.Item, error) {
	var ji jsonItem
	if err := json.Unmarshal(data, &ji); err != nil {
		return provider.Item{}, &errs.Io{Op: "from_json", Err: err}
	}
	return provider.Item{
		Kind: ji.Kind, ID: ji.ID, Name: ji.Name,
		Size: ji.Size, MimeType: ji.MimeType, Timestamp: ji.Timestamp,
	}, nil
}

func (p *Provider) IsFileContentSizeRequired(ctx context.Context, dir provider.Item) bool { return false }

func (p *Provider) allocID() provider.ID {
	p.nextID++
	return provider.ID(itoa(p.nextID))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func removeID(ids []provider.ID, target provider.ID) []provider.ID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
