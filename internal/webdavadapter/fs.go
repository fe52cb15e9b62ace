// Package webdavadapter implements spec.md §4.6: it satisfies
// golang.org/x/net/webdav.FileSystem over the Abstract Provider, letting
// the battle-tested x/net/webdav.Handler speak the WebDAV protocol
// (PROPFIND, MKCOL, PUT, DELETE, MOVE, PROPPATCH, LOCK/UNLOCK) while this
// package only ever has to answer "what is at this path" in terms of
// provider.Item.
//
// Provider items are addressed by opaque ID, not by path, so the adapter
// resolves a WebDAV path into an Item by walking the tree component by
// component from the account's root via ListDirectoryPage — there is no
// shortcut path index, matching how the source system itself has no
// flat path table either.
package webdavadapter

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"
	"sync"

	"golang.org/x/net/webdav"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// FileSystem adapts one account's Provider to webdav.FileSystem.
type FileSystem struct {
	prov provider.Provider

	rootOnce sync.Once
	root     provider.Item
	rootErr  error
}

// New constructs a FileSystem over prov. The account root is fetched
// lazily (on first resolve) and cached, since the root item's identity
// does not change for the lifetime of an account.
func New(prov provider.Provider) *FileSystem {
	return &FileSystem{prov: prov}
}

func (fs *FileSystem) getRoot(ctx context.Context) (provider.Item, error) {
	fs.rootOnce.Do(func() {
		fs.root, fs.rootErr = fs.prov.GetRoot(ctx)
	})
	return fs.root, fs.rootErr
}

// splitPath cleans and splits a WebDAV path into non-empty components.
func splitPath(name string) []string {
	clean := strings.Trim(path.Clean("/"+name), "/")
	if clean == "" {
		return nil
	}
	return strings.Split(clean, "/")
}

// resolve walks from the account root to the item named by segments,
// returning it along with its immediate parent. An empty segments list
// resolves to the root itself (parent == item == root).
func (fs *FileSystem) resolve(ctx context.Context, segments []string) (item, parent provider.Item, err error) {
	root, err := fs.getRoot(ctx)
	if err != nil {
		return provider.Item{}, provider.Item{}, err
	}
	if len(segments) == 0 {
		return root, root, nil
	}
	cur := root
	for i, seg := range segments {
		child, ferr := fs.findChild(ctx, cur, seg)
		if ferr != nil {
			return provider.Item{}, provider.Item{}, ferr
		}
		if i == len(segments)-1 {
			return child, cur, nil
		}
		if !child.IsDirectory() {
			return provider.Item{}, provider.Item{}, errs.Invalid("path component is not a directory: " + seg)
		}
		cur = child
	}
	// unreachable: the loop above always returns on its last iteration.
	return provider.Item{}, provider.Item{}, errs.NotFound(strings.Join(segments, "/"))
}

// resolveParent resolves the parent directory of segments without
// requiring the final component to already exist, for Mkdir/create-PUT/
// the destination side of Rename.
func (fs *FileSystem) resolveParent(ctx context.Context, segments []string) (parent provider.Item, name string, err error) {
	if len(segments) == 0 {
		return provider.Item{}, "", errs.Invalid("cannot resolve the parent of the root")
	}
	parent, _, err = fs.resolve(ctx, segments[:len(segments)-1])
	if err != nil {
		return provider.Item{}, "", err
	}
	return parent, segments[len(segments)-1], nil
}

// findChild scans every page of dir's listing for an item named name,
// honoring the pagination-completeness invariant of spec.md §8 (the
// union across pages, not just the first).
func (fs *FileSystem) findChild(ctx context.Context, dir provider.Item, name string) (provider.Item, error) {
	pageToken := ""
	for {
		page, err := fs.prov.ListDirectoryPage(ctx, dir, pageToken)
		if err != nil {
			return provider.Item{}, err
		}
		for _, it := range page.Items {
			if it.Name == name {
				return it, nil
			}
		}
		if page.NextPageToken == "" {
			return provider.Item{}, errs.NotFound(name)
		}
		pageToken = page.NextPageToken
	}
}

// Mkdir implements webdav.FileSystem.
func (fs *FileSystem) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	segs := splitPath(name)
	if len(segs) == 0 {
		return errs.Invalid("cannot mkdir the root")
	}
	parent, childName, err := fs.resolveParent(ctx, segs)
	if err != nil {
		return err
	}
	_, err = fs.prov.CreateDirectory(ctx, parent, childName)
	return err
}

// OpenFile implements webdav.FileSystem. An existing path opens a
// read-only view (directory listing or seekable file content,
// regardless of the requested flag — provider content is immutable
// in place); a missing path with O_CREATE set opens a buffered upload
// that materializes via CreateFile on Close.
func (fs *FileSystem) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	segs := splitPath(name)
	item, _, err := fs.resolve(ctx, segs)
	if err == nil {
		if item.IsDirectory() {
			return newDirFile(fs, ctx, item), nil
		}
		return newReadFile(fs, ctx, item), nil
	}

	var notFound errs.NotFound
	if !errors.As(err, &notFound) || flag&os.O_CREATE == 0 {
		return nil, err
	}
	parent, childName, perr := fs.resolveParent(ctx, segs)
	if perr != nil {
		return nil, perr
	}
	return newPendingUpload(fs, ctx, parent, childName), nil
}

// RemoveAll implements webdav.FileSystem (DELETE).
func (fs *FileSystem) RemoveAll(ctx context.Context, name string) error {
	segs := splitPath(name)
	if len(segs) == 0 {
		return errs.Invalid("cannot remove the root")
	}
	item, _, err := fs.resolve(ctx, segs)
	if err != nil {
		return err
	}
	return fs.prov.Remove(ctx, item)
}

// Rename implements webdav.FileSystem (MOVE). Per spec.md §4.6: if the
// destination's parent differs from the source's, Move runs first; then
// if the final path segment differs from the source name, Rename runs.
// Cross-account moves never reach here: each account's Handler is
// mounted with its own Prefix, and x/net/webdav.Handler itself rejects a
// MOVE whose Destination header does not share that prefix before
// Rename is ever called.
func (fs *FileSystem) Rename(ctx context.Context, oldName, newName string) error {
	oldSegs := splitPath(oldName)
	newSegs := splitPath(newName)
	if len(oldSegs) == 0 || len(newSegs) == 0 {
		return errs.Invalid("cannot rename the root")
	}

	item, oldParent, err := fs.resolve(ctx, oldSegs)
	if err != nil {
		return err
	}
	newParent, newBaseName, err := fs.resolveParent(ctx, newSegs)
	if err != nil {
		return err
	}

	cur := item
	if newParent.ID != oldParent.ID {
		cur, err = fs.prov.Move(ctx, cur, newParent)
		if err != nil {
			return err
		}
	}
	if cur.Name != newBaseName {
		if _, err := fs.prov.Rename(ctx, cur, newBaseName); err != nil {
			return err
		}
	}
	return nil
}

// Stat implements webdav.FileSystem.
func (fs *FileSystem) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	segs := splitPath(name)
	item, _, err := fs.resolve(ctx, segs)
	if err != nil {
		return nil, err
	}
	return itemInfo{item}, nil
}
