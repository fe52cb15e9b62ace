// Package rclone implements the Abstract Provider contract by shelling out
// to the rclone binary against a preconfigured remote. It is the catch-all
// backend for every provider spec.md names that has no direct SDK binding
// in this tree (Dropbox, Box, OneDrive, pCloud, Mega, Yandex Disk, HubiC),
// the same way rclone itself treats every backend as "a remote" behind one
// command-line surface.
package rclone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// Credentials names the rclone remote this account talks through. The
// backend tag ("dropbox", "box", "onedrive", "pcloud", "mega", "yandex",
// "hubic") is not part of the credentials; it comes from Factory's kind
// argument. Remote is the rclone remote name from the user's rclone.conf
// (e.g. "mydropbox");
// ConfigPath overrides rclone's default config file location when set.
type Credentials struct {
	Remote     string `json:"remote"`
	ConfigPath string `json:"config_path"`
}

// Provider roots the Abstract Provider contract at an rclone remote,
// driving the rclone CLI the way its own backend drivers drive a remote
// cloud API: one subprocess per operation rather than a held connection,
// since rclone itself owns all transport and auth refresh.
type Provider struct {
	kind       string
	remote     string
	configPath string
}

// New verifies rclone is installed and the named remote is configured,
// then returns a Provider bound to it.
func New(kind string, creds Credentials) (*Provider, error) {
	if creds.Remote == "" {
		return nil, errs.Invalid("rclone remote name is required")
	}
	if _, err := exec.LookPath("rclone"); err != nil {
		return nil, &errs.Io{Op: "lookpath", Err: err}
	}
	p := &Provider{kind: kind, remote: creds.Remote, configPath: creds.ConfigPath}
	out, err := p.run(context.Background(), "listremotes")
	if err != nil {
		return nil, &errs.Io{Op: "listremotes", Err: err}
	}
	if !strings.Contains(out.String(), creds.Remote+":") {
		return nil, errs.Invalid(fmt.Sprintf("rclone remote %q is not configured", creds.Remote))
	}
	return p, nil
}

// Factory adapts New into a provider.Factory for the given backend tag.
// The AuthToken's Blob is a JSON-encoded Credentials.
func Factory(kind string) provider.Factory {
	return func(ctx context.Context, token provider.AuthToken) (provider.Provider, error) {
		var creds Credentials
		if err := json.Unmarshal(token.Blob, &creds); err != nil {
			return nil, errs.Invalid("malformed rclone credentials: " + err.Error())
		}
		return New(kind, creds)
	}
}

func (p *Provider) Type() string { return p.kind }

func (p *Provider) args(args ...string) []string {
	if p.configPath != "" {
		return append([]string{"--config", p.configPath}, args...)
	}
	return args
}

func (p *Provider) run(ctx context.Context, args ...string) (*bytes.Buffer, error) {
	cmd := exec.CommandContext(ctx, "rclone", p.args(args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return &stdout, nil
}

func (p *Provider) path(id provider.ID) string {
	return p.remote + ":" + strings.TrimPrefix(path.Clean("/"+string(id)), "/")
}

func childID(parent provider.ID, name string) provider.ID {
	return provider.ID(strings.TrimPrefix(path.Join(string(parent), name), "/"))
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "directory not found") || strings.Contains(msg, "no such") {
		return errs.NotFound(op)
	}
	if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid token") || strings.Contains(msg, "401") {
		return errs.Unauthorized(op)
	}
	return &errs.Io{Op: op, Err: err}
}

// lsEntry mirrors rclone lsjson's per-entry output shape.
type lsEntry struct {
	Path     string `json:"Path"`
	Name     string `json:"Name"`
	Size     int64  `json:"Size"`
	MimeType string `json:"MimeType"`
	IsDir    bool   `json:"IsDir"`
}

func toItem(parent provider.ID, e lsEntry) provider.Item {
	id := childID(parent, e.Name)
	if e.IsDir {
		return provider.Item{Kind: provider.KindDirectory, ID: id, Name: e.Name}
	}
	size := e.Size
	return provider.Item{Kind: provider.KindFile, ID: id, Name: e.Name, Size: &size, MimeType: e.MimeType}
}

func (p *Provider) GetRoot(ctx context.Context) (provider.Item, error) {
	return provider.Item{Kind: provider.KindDirectory, ID: "", Name: p.remote}, nil
}

func (p *Provider) GetGeneralData(ctx context.Context) (provider.GeneralData, error) {
	out, err := p.run(ctx, "about", p.remote+":", "--json")
	if err != nil {
		return provider.GeneralData{Username: p.remote}, nil
	}
	var about struct {
		Total int64 `json:"total"`
		Used  int64 `json:"used"`
	}
	if err := json.Unmarshal(out.Bytes(), &about); err != nil {
		return provider.GeneralData{Username: p.remote}, nil
	}
	return provider.GeneralData{Username: p.remote, SpaceUsed: &about.Used, SpaceTotal: &about.Total}, nil
}

// ListDirectoryPage returns every entry in one page: rclone's lsjson has no
// continuation token, it simply lists the directory in one call.
func (p *Provider) ListDirectoryPage(ctx context.Context, dir provider.Item, pageToken string) (provider.PageData, error) {
	out, err := p.run(ctx, "lsjson", p.path(dir.ID))
	if err != nil {
		return provider.PageData{}, wrapErr("list_directory_page", err)
	}
	var entries []lsEntry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		return provider.PageData{}, &errs.Io{Op: "list_directory_page", Err: err}
	}
	items := make([]provider.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, toItem(dir.ID, e))
	}
	return provider.PageData{Items: items}, nil
}

// procBody adapts a running rclone subprocess's stdout into an
// io.ReadCloser: Close drains nothing further and waits for the process to
// exit, surfacing a late failure (e.g. a connection drop mid-transfer) as a
// Close error instead of silently truncating the stream.
type procBody struct {
	io.Reader
	cmd *exec.Cmd
}

func (b *procBody) Close() error {
	return b.cmd.Wait()
}

func (p *Provider) GetFileContent(ctx context.Context, file provider.Item, rng provider.Range) (provider.Content, error) {
	args := []string{"cat", p.path(file.ID)}
	if rng.Start > 0 {
		args = append(args, "--offset", strconv.FormatInt(rng.Start, 10))
	}
	length := int64(-1)
	if file.Size != nil {
		length = rng.Length(*file.Size)
		args = append(args, "--count", strconv.FormatInt(length, 10))
	}
	cmd := exec.CommandContext(ctx, "rclone", p.args(args...)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return provider.Content{}, &errs.Io{Op: "get_file_content", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return provider.Content{}, &errs.Io{Op: "get_file_content", Err: err}
	}
	return provider.Content{Body: &procBody{Reader: stdout, cmd: cmd}, ContentLength: length}, nil
}

func (p *Provider) stat(ctx context.Context, id provider.ID) (lsEntry, error) {
	out, err := p.run(ctx, "lsjson", p.path(provider.ID(path.Dir(string(id)))))
	if err != nil {
		return lsEntry{}, wrapErr("stat", err)
	}
	var entries []lsEntry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		return lsEntry{}, &errs.Io{Op: "stat", Err: err}
	}
	name := path.Base(string(id))
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return lsEntry{}, errs.NotFound(string(id))
}

func (p *Provider) CreateDirectory(ctx context.Context, parent provider.Item, name string) (provider.Item, error) {
	id := childID(parent.ID, name)
	if _, err := p.run(ctx, "mkdir", p.path(id)); err != nil {
		return provider.Item{}, wrapErr("create_directory", err)
	}
	return provider.Item{Kind: provider.KindDirectory, ID: id, Name: name}, nil
}

// CreateFile streams content into rclone's stdin via rcat, rclone's
// push-from-stdin upload command for backends with no direct multipart
// upload path of their own.
func (p *Provider) CreateFile(ctx context.Context, parent provider.Item, name string, content io.Reader, size int64) (provider.Item, error) {
	id := childID(parent.ID, name)
	cmd := exec.CommandContext(ctx, "rclone", p.args("rcat", p.path(id))...)
	cmd.Stdin = content
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return provider.Item{}, wrapErr("create_file", fmt.Errorf("%s", strings.TrimSpace(stderr.String())))
	}
	return provider.Item{Kind: provider.KindFile, ID: id, Name: name, Size: &size}, nil
}

func (p *Provider) Rename(ctx context.Context, item provider.Item, newName string) (provider.Item, error) {
	newID := childID(provider.ID(path.Dir(string(item.ID))), newName)
	if _, err := p.run(ctx, "moveto", p.path(item.ID), p.path(newID)); err != nil {
		return provider.Item{}, wrapErr("rename", err)
	}
	item.ID = newID
	item.Name = newName
	return item, nil
}

func (p *Provider) Move(ctx context.Context, item provider.Item, destinationDir provider.Item) (provider.Item, error) {
	newID := childID(destinationDir.ID, path.Base(string(item.ID)))
	if _, err := p.run(ctx, "moveto", p.path(item.ID), p.path(newID)); err != nil {
		return provider.Item{}, wrapErr("move", err)
	}
	item.ID = newID
	return item, nil
}

func (p *Provider) Remove(ctx context.Context, item provider.Item) error {
	if item.IsDirectory() {
		_, err := p.run(ctx, "purge", p.path(item.ID))
		return wrapErr("remove", err)
	}
	_, err := p.run(ctx, "deletefile", p.path(item.ID))
	return wrapErr("remove", err)
}

// GetThumbnail always returns NotFound: rclone's CLI surface has no
// thumbnail endpoint of its own, so every rclone-backed account falls back
// to the generated-image/icon tiers of the thumbnail chain.
func (p *Provider) GetThumbnail(ctx context.Context, item provider.Item, quality provider.ThumbnailQuality, rng provider.Range) (provider.Thumbnail, error) {
	return provider.Thumbnail{}, errs.NotFound("rclone provider has no native thumbnails")
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
	if ji.Kind == provider.KindDirectory {
		return provider.Item{Kind: provider.KindDirectory, ID: ji.ID, Name: ji.Name}, nil
	}
	e, err := p.stat(context.Background(), ji.ID)
	if err != nil {
		return provider.Item{}, err
	}
	return toItem(provider.ID(path.Dir(string(ji.ID))), e), nil
}

// IsFileContentSizeRequired is false: rcat streams from stdin without a
// known length, the same way rclone itself uploads from a pipe.
func (p *Provider) IsFileContentSizeRequired(ctx context.Context, dir provider.Item) bool { return false }
