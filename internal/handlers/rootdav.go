package handlers

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"time"

	"golang.org/x/net/webdav"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/errs"
)

// rootFileSystem is a synthetic golang.org/x/net/webdav.FileSystem for
// "/" itself: one read-only collection per live Account, no deeper
// traversal (each account's own content is served by the WebDAV handler
// mounted at its URL prefix, registered separately via
// internal/account.HandlerFactory). Reusing webdav.Handler for this
// keeps root PROPFIND's multi-status XML generated by the same library
// every other WebDAV response goes through, rather than a hand-rolled
// serializer.
type rootFileSystem struct {
	accounts *account.Manager
}

func (rootFileSystem) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return errs.Unsupported("accounts are created via /auth/<type>, not MKCOL")
}

func (fsys rootFileSystem) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
		return nil, errs.Unsupported("the root collection is read-only")
	}
	name = strings.Trim(name, "/")
	if name == "" {
		return &rootDir{accounts: fsys.accounts}, nil
	}
	for _, acc := range fsys.accounts.List() {
		if acc.ID() == name {
			return &accountStubDir{acc: acc}, nil
		}
	}
	return nil, errs.NotFound(name)
}

func (rootFileSystem) RemoveAll(ctx context.Context, name string) error {
	return errs.Unsupported("use /remove/<id> to tear down an account")
}

func (rootFileSystem) Rename(ctx context.Context, oldName, newName string) error {
	return errs.Unsupported("the root collection is read-only")
}

func (fsys rootFileSystem) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	f, err := fsys.OpenFile(ctx, name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return f.Stat()
}

// rootDir is "/" itself: a directory whose children are one collection
// per live Account.
type rootDir struct {
	accounts *account.Manager
}

func (d *rootDir) Readdir(count int) ([]fs.FileInfo, error) {
	accs := d.accounts.List()
	infos := make([]fs.FileInfo, len(accs))
	for i, acc := range accs {
		infos[i] = accountInfo{acc}
	}
	return infos, nil
}
func (d *rootDir) Stat() (fs.FileInfo, error)                   { return rootInfo{}, nil }
func (d *rootDir) Read(p []byte) (int, error)                   { return 0, errs.Invalid("is a directory") }
func (d *rootDir) Seek(offset int64, whence int) (int64, error) { return 0, errs.Invalid("is a directory") }
func (d *rootDir) Write(p []byte) (int, error)                  { return 0, errs.Unsupported("read-only") }
func (d *rootDir) Close() error                                 { return nil }

// accountStubDir is one account's synthetic top-level collection: empty,
// since its real content is served by the WebDAV handler mounted at the
// account's own URL prefix.
type accountStubDir struct{ acc *account.Account }

func (d *accountStubDir) Readdir(count int) ([]fs.FileInfo, error) { return nil, nil }
func (d *accountStubDir) Stat() (fs.FileInfo, error)               { return accountInfo{d.acc}, nil }
func (d *accountStubDir) Read(p []byte) (int, error)               { return 0, errs.Invalid("is a directory") }
func (d *accountStubDir) Seek(offset int64, whence int) (int64, error) {
	return 0, errs.Invalid("is a directory")
}
func (d *accountStubDir) Write(p []byte) (int, error) { return 0, errs.Unsupported("read-only") }
func (d *accountStubDir) Close() error                { return nil }

type rootInfo struct{}

func (rootInfo) Name() string       { return "/" }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() fs.FileMode  { return fs.ModeDir | 0755 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() any           { return nil }

type accountInfo struct{ acc *account.Account }

func (a accountInfo) Name() string       { return a.acc.ID() }
func (a accountInfo) Size() int64        { return 0 }
func (a accountInfo) Mode() fs.FileMode  { return fs.ModeDir | 0755 }
func (a accountInfo) ModTime() time.Time { return time.Time{} }
func (a accountInfo) IsDir() bool        { return true }
func (a accountInfo) Sys() any           { return a.acc }
