// Package localfs implements the Abstract Provider contract over a
// directory on the local filesystem. It uses only the standard library:
// no third-party library serves local disk I/O better than os/io, so this
// is one of the ambient pieces justified on the standard library rather
// than the ecosystem (see DESIGN.md).
package localfs

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// Provider roots the Abstract Provider contract at Root on disk. Item IDs
// are the path relative to Root, so they are stable across restarts
// without a side index.
type Provider struct {
	Root     string
	Username string
}

// New constructs a Provider rooted at root. root must already exist.
func New(root, username string) (*Provider, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &errs.Io{Op: "stat_root", Err: err}
	}
	if !info.IsDir() {
		return nil, errs.Invalid("root is not a directory: " + root)
	}
	return &Provider{Root: root, Username: username}, nil
}

// Factory adapts New into a provider.Factory. The AuthToken's Blob is the
// root directory path (local filesystem has no real credential).
func Factory() provider.Factory {
	return func(ctx context.Context, token provider.AuthToken) (provider.Provider, error) {
		root := string(token.Blob)
		return New(root, "local")
	}
}

func (p *Provider) Type() string { return "local" }

func (p *Provider) abs(id provider.ID) string {
	return filepath.Join(p.Root, filepath.FromSlash(string(id)))
}

func (p *Provider) toItem(id provider.ID, info os.FileInfo) provider.Item {
	ts := info.ModTime()
	if info.IsDir() {
		return provider.Item{Kind: provider.KindDirectory, ID: id, Name: info.Name(), Timestamp: &ts}
	}
	size := info.Size()
	return provider.Item{Kind: provider.KindFile, ID: id, Name: info.Name(), Size: &size, Timestamp: &ts}
}

func (p *Provider) GetRoot(ctx context.Context) (provider.Item, error) {
	if _, err := os.Stat(p.Root); err != nil {
		return provider.Item{}, &errs.Io{Op: "get_root", Err: err}
	}
	return provider.Item{Kind: provider.KindDirectory, ID: "", Name: ""}, nil
}

func (p *Provider) GetGeneralData(ctx context.Context) (provider.GeneralData, error) {
	return provider.GeneralData{Username: p.Username}, nil
}

// ListDirectoryPage returns every entry in one page: the local filesystem
// has no natural continuation token, so NextPageToken is always empty.
func (p *Provider) ListDirectoryPage(ctx context.Context, dir provider.Item, pageToken string) (provider.PageData, error) {
	entries, err := os.ReadDir(p.abs(dir.ID))
	if err != nil {
		if os.IsNotExist(err) {
			return provider.PageData{}, errs.NotFound(string(dir.ID))
		}
		return provider.PageData{}, &errs.Io{Op: "list_directory_page", Err: err}
	}
	items := make([]provider.Item, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		childID := provider.ID(filepath.ToSlash(filepath.Join(string(dir.ID), e.Name())))
		items = append(items, p.toItem(childID, info))
	}
	return provider.PageData{Items: items}, nil
}

func (p *Provider) GetFileContent(ctx context.Context, file provider.Item, rng provider.Range) (provider.Content, error) {
	f, err := os.Open(p.abs(file.ID))
	if err != nil {
		if os.IsNotExist(err) {
			return provider.Content{}, errs.NotFound(string(file.ID))
		}
		return provider.Content{}, &errs.Io{Op: "get_file_content", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return provider.Content{}, &errs.Io{Op: "stat", Err: err}
	}
	total := info.Size()
	end := rng.ResolveEnd(total)
	if rng.Start < 0 || rng.Start > end || (rng.End != nil && rng.Start >= total) {
		f.Close()
		return provider.Content{}, errs.Invalid("range not satisfiable")
	}
	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		f.Close()
		return provider.Content{}, &errs.Io{Op: "seek", Err: err}
	}
	length := end - rng.Start + 1
	return provider.Content{
		Body:          limitedReadCloser{io.LimitReader(f, length), f},
		ContentLength: length,
	}, nil
}

// limitedReadCloser pairs a length-limited Reader with the underlying
// file's Close, so callers get exactly the requested range but still
// close the real descriptor.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}

func (p *Provider) CreateDirectory(ctx context.Context, parent provider.Item, name string) (provider.Item, error) {
	id := provider.ID(filepath.ToSlash(filepath.Join(string(parent.ID), name)))
	if err := os.Mkdir(p.abs(id), 0o755); err != nil {
		return provider.Item{}, &errs.Io{Op: "create_directory", Err: err}
	}
	info, err := os.Stat(p.abs(id))
	if err != nil {
		return provider.Item{}, &errs.Io{Op: "stat", Err: err}
	}
	return p.toItem(id, info), nil
}

func (p *Provider) CreateFile(ctx context.Context, parent provider.Item, name string, content io.Reader, size int64) (provider.Item, error) {
	id := provider.ID(filepath.ToSlash(filepath.Join(string(parent.ID), name)))
	f, err := os.Create(p.abs(id))
	if err != nil {
		return provider.Item{}, &errs.Io{Op: "create_file", Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(f, content); err != nil {
		return provider.Item{}, &errs.Io{Op: "write", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		return provider.Item{}, &errs.Io{Op: "stat", Err: err}
	}
	return p.toItem(id, info), nil
}

func (p *Provider) Rename(ctx context.Context, item provider.Item, newName string) (provider.Item, error) {
	newID := provider.ID(filepath.ToSlash(filepath.Join(filepath.Dir(string(item.ID)), newName)))
	if string(item.ID) == "." || filepath.Dir(string(item.ID)) == "." {
		newID = provider.ID(newName)
	}
	if err := os.Rename(p.abs(item.ID), p.abs(newID)); err != nil {
		if os.IsNotExist(err) {
			return provider.Item{}, errs.NotFound(string(item.ID))
		}
		return provider.Item{}, &errs.Io{Op: "rename", Err: err}
	}
	info, err := os.Stat(p.abs(newID))
	if err != nil {
		return provider.Item{}, &errs.Io{Op: "stat", Err: err}
	}
	return p.toItem(newID, info), nil
}

func (p *Provider) Move(ctx context.Context, item provider.Item, destinationDir provider.Item) (provider.Item, error) {
	newID := provider.ID(filepath.ToSlash(filepath.Join(string(destinationDir.ID), filepath.Base(string(item.ID)))))
	if err := os.Rename(p.abs(item.ID), p.abs(newID)); err != nil {
		if os.IsNotExist(err) {
			return provider.Item{}, errs.NotFound(string(item.ID))
		}
		return provider.Item{}, &errs.Io{Op: "move", Err: err}
	}
	info, err := os.Stat(p.abs(newID))
	if err != nil {
		return provider.Item{}, &errs.Io{Op: "stat", Err: err}
	}
	return p.toItem(newID, info), nil
}

// Remove removes item; directories are removed recursively per spec.
func (p *Provider) Remove(ctx context.Context, item provider.Item) error {
	if err := os.RemoveAll(p.abs(item.ID)); err != nil {
		return &errs.Io{Op: "remove", Err: err}
	}
	return nil
}

// GetThumbnail always returns NotFound: the local filesystem has no
// native thumbnail endpoint, so callers fall through to the Thumbnailer
// (spec.md §4.7).
func (p *Provider) GetThumbnail(ctx context.Context, item provider.Item, quality provider.ThumbnailQuality, rng provider.Range) (provider.Thumbnail, error) {
	return provider.Thumbnail{}, errs.NotFound("local filesystem has no native thumbnails")
}

type jsonItem struct {
	Kind provider.ItemKind `json:"kind"`
	ID   provider.ID       `json:"id"`
	Name string            `json:"name"`
}

func (p *Provider) ToJSON(item provider.Item) ([]byte, error) {
	return json.Marshal(jsonItem{Kind: item.Kind, ID: item.ID, Name: item.Name})
}

func (p *Provider) FromJSON(data []byte) (provider.Item, error) {
	var ji jsonItem
	if err := json.Unmarshal(data, &ji); err != nil {
		return provider.Item{}, &errs.Io{Op: "from_json", Err: err}
	}
	abs := filepath.Join(p.Root, filepath.FromSlash(string(ji.ID)))
	info, err := os.Stat(abs)
	if err != nil {
		return provider.Item{}, errs.NotFound(string(ji.ID))
	}
	return p.toItem(ji.ID, info), nil
}

// IsFileContentSizeRequired is always false: the local filesystem streams
// writes of unknown length without issue.
func (p *Provider) IsFileContentSizeRequired(ctx context.Context, dir provider.Item) bool { return false }
