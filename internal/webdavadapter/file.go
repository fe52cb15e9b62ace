package webdavadapter

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"time"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
	"github.com/cloudgate/cloudgate/internal/stream"
)

// itemInfo adapts a provider.Item to fs.FileInfo for Stat/Readdir.
type itemInfo struct {
	item provider.Item
}

func (i itemInfo) Name() string { return i.item.Name }

func (i itemInfo) Size() int64 {
	if i.item.Size != nil {
		return *i.item.Size
	}
	return 0
}

func (i itemInfo) Mode() fs.FileMode {
	if i.item.IsDirectory() {
		return fs.ModeDir | 0755
	}
	return 0644
}

func (i itemInfo) ModTime() time.Time {
	if i.item.Timestamp != nil {
		return *i.item.Timestamp
	}
	return time.Time{}
}

func (i itemInfo) IsDir() bool { return i.item.IsDirectory() }
func (i itemInfo) Sys() any    { return i.item }

// readFile serves GET/HEAD/Range reads of an existing file item through
// a seekable source backed by ranged provider fetches.
type readFile struct {
	fs   *FileSystem
	ctx  context.Context
	item provider.Item
	src  *stream.SeekableSource
}

func newReadFile(fsys *FileSystem, ctx context.Context, item provider.Item) *readFile {
	size := int64(-1)
	if item.Size != nil {
		size = *item.Size
	}
	rf := &readFile{fs: fsys, ctx: ctx, item: item}
	rf.src = stream.NewSeekableSource(ctx, rf.fetch, size)
	return rf
}

func (f *readFile) fetch(ctx context.Context, start, end int64) (io.ReadCloser, error) {
	var rEnd *int64
	if end >= 0 {
		e := end
		rEnd = &e
	}
	content, err := f.fs.prov.GetFileContent(ctx, f.item, provider.Range{Start: start, End: rEnd})
	if err != nil {
		return nil, err
	}
	return content.Body, nil
}

func (f *readFile) Read(p []byte) (int, error) {
	n, err := f.src.Read(p)
	if n > 0 {
		resetProgress(f.ctx)
	}
	return n, err
}

func (f *readFile) Seek(offset int64, whence int) (int64, error) { return f.src.Seek(offset, whence) }
func (f *readFile) Close() error                                 { return f.src.Close() }
func (f *readFile) Write(p []byte) (int, error)                  { return 0, errs.Unsupported("file was opened read-only") }
func (f *readFile) Readdir(count int) ([]fs.FileInfo, error)     { return nil, errs.Invalid("not a directory") }
func (f *readFile) Stat() (fs.FileInfo, error)                   { return itemInfo{f.item}, nil }

// dirFile serves PROPFIND/Readdir of a directory item: the full listing
// is loaded (across every page) on first Readdir and cached for the
// lifetime of this handle, matching PROPFIND's one-shot nature.
type dirFile struct {
	fs      *FileSystem
	ctx     context.Context
	item    provider.Item
	entries []provider.Item
	loaded  bool
}

func newDirFile(fsys *FileSystem, ctx context.Context, item provider.Item) *dirFile {
	return &dirFile{fs: fsys, ctx: ctx, item: item}
}

func (d *dirFile) load() error {
	if d.loaded {
		return nil
	}
	pageToken := ""
	for {
		page, err := d.fs.prov.ListDirectoryPage(d.ctx, d.item, pageToken)
		if err != nil {
			return err
		}
		d.entries = append(d.entries, page.Items...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	d.loaded = true
	return nil
}

func (d *dirFile) Readdir(count int) ([]fs.FileInfo, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, len(d.entries))
	for i, it := range d.entries {
		infos[i] = itemInfo{it}
	}
	return infos, nil
}

func (d *dirFile) Read(p []byte) (int, error)                   { return 0, errs.Invalid("is a directory") }
func (d *dirFile) Seek(offset int64, whence int) (int64, error) { return 0, errs.Invalid("is a directory") }
func (d *dirFile) Write(p []byte) (int, error)                  { return 0, errs.Invalid("is a directory") }
func (d *dirFile) Close() error                                 { return nil }
func (d *dirFile) Stat() (fs.FileInfo, error)                   { return itemInfo{d.item}, nil }

// pendingUpload buffers a PUT body in memory until Close, at which point
// it calls CreateFile with the final byte count. Buffering in memory
// (rather than staging to a temp file) matches this gateway's scale: a
// single-box local bridge, not a high-throughput upload server.
type pendingUpload struct {
	fs     *FileSystem
	ctx    context.Context
	parent provider.Item
	name   string
	buf    bytes.Buffer
	result provider.Item
}

func newPendingUpload(fsys *FileSystem, ctx context.Context, parent provider.Item, name string) *pendingUpload {
	return &pendingUpload{fs: fsys, ctx: ctx, parent: parent, name: name}
}

func (p *pendingUpload) Write(b []byte) (int, error) {
	n, err := p.buf.Write(b)
	if n > 0 {
		resetProgress(p.ctx)
	}
	return n, err
}
func (p *pendingUpload) Read(b []byte) (int, error) {
	return 0, errs.Unsupported("file is write-only until closed")
}
func (p *pendingUpload) Seek(offset int64, whence int) (int64, error) {
	return 0, errs.Unsupported("cannot seek an in-progress upload")
}
func (p *pendingUpload) Readdir(count int) ([]fs.FileInfo, error) {
	return nil, errs.Invalid("not a directory")
}

func (p *pendingUpload) Stat() (fs.FileInfo, error) {
	if p.result.Name != "" {
		return itemInfo{p.result}, nil
	}
	return itemInfo{provider.Item{Kind: provider.KindFile, Name: p.name}}, nil
}

func (p *pendingUpload) Close() error {
	item, err := p.fs.prov.CreateFile(p.ctx, p.parent, p.name, bytes.NewReader(p.buf.Bytes()), int64(p.buf.Len()))
	if err != nil {
		return err
	}
	p.result = item
	return nil
}
