// Package gdrive implements the Abstract Provider contract over the
// Google Drive v3 API, the client SPEC_FULL.md's DOMAIN STACK names for
// the Google Drive backend. Item IDs are Drive file ids directly: Drive
// already hands out a stable, account-unique id per file, so no local
// path translation is needed the way localfs/webdavp/s3p require.
//
// Every outbound Drive call is mediated by an internal/auth.Manager
// rather than oauth2's own auto-refreshing client: the Manager owns the
// Active/Refreshing state machine and the at-most-one-refresh-in-flight
// barrier spec.md §4.2 describes, and persists a rotated refresh token
// through Settings before releasing any request that was waiting on it.
package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/cloudgate/cloudgate/internal/auth"
	"github.com/cloudgate/cloudgate/internal/config"
	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

const fileFields = "id,name,mimeType,size,modifiedTime,trashed"
const listFields = googleapi.Field("nextPageToken, files(" + fileFields + ")")

// Provider wraps a Drive v3 service authenticated for one account.
type Provider struct {
	svc      *drive.Service
	http     *http.Client
	authMgr  *auth.Manager
	settings *config.Settings

	mu        sync.Mutex
	creds     Credentials
	username  string
	accountID string
}

// Credentials is the opaque token blob shape: an OAuth2 app registration
// plus the user's refresh token, so the oauth2 TokenSource can mint
// fresh access tokens across the account's lifetime without replaying
// the consent flow.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// New constructs a Provider, authenticating outbound Drive calls through
// an internal/auth.Manager seeded with one synchronous token exchange
// (conf.TokenSource against creds.RefreshToken) rather than handing Drive
// an oauth2-managed client directly. settings, if non-nil, is where a
// rotated refresh token is persisted once this account's id is known.
func New(ctx context.Context, creds Credentials, settings *config.Settings) (*Provider, error) {
	if creds.RefreshToken == "" {
		return nil, errs.Invalid("google drive refresh token is required")
	}
	p := &Provider{settings: settings, creds: creds}

	initial, err := p.refresh(ctx, provider.AuthToken{})
	if err != nil {
		return nil, err
	}
	p.authMgr = auth.NewManager(initial, p.refresh, attachBearer, p.onTokenUpdated)
	p.http = &http.Client{Transport: &authTransport{mgr: p.authMgr, base: http.DefaultTransport}}

	svc, err := drive.NewService(ctx, option.WithHTTPClient(p.http))
	if err != nil {
		return nil, &errs.Io{Op: "drive_connect", Err: err}
	}
	p.svc = svc
	return p, nil
}

// Factory adapts New into a provider.Factory. The AuthToken's Blob is a
// JSON-encoded Credentials. settings is threaded through so a rotated
// refresh token can be persisted; pass nil to skip persistence (e.g. in
// tests).
func Factory(settings *config.Settings) provider.Factory {
	return func(ctx context.Context, token provider.AuthToken) (provider.Provider, error) {
		var creds Credentials
		if err := json.Unmarshal(token.Blob, &creds); err != nil {
			return nil, errs.Invalid("malformed google drive credentials: " + err.Error())
		}
		return New(ctx, creds, settings)
	}
}

func (p *Provider) Type() string { return "gdrive" }

// refresh is the auth.Manager's Refresher: it exchanges the held refresh
// token for a fresh access token, adopting any rotated refresh token
// Google returns so the next refresh (and onTokenUpdated's persistence)
// uses it instead of the stale one.
func (p *Provider) refresh(ctx context.Context, stale provider.AuthToken) (provider.AuthToken, error) {
	p.mu.Lock()
	creds := p.creds
	p.mu.Unlock()

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveScope},
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}).Token()
	if err != nil {
		return provider.AuthToken{}, &errs.Io{Op: "refresh_token", Err: err}
	}

	p.mu.Lock()
	if tok.RefreshToken != "" {
		p.creds.RefreshToken = tok.RefreshToken
	}
	p.mu.Unlock()

	return provider.AuthToken{TypeTag: "bearer", Blob: []byte(tok.AccessToken)}, nil
}

// attachBearer is the auth.Manager's AttachFunc for Drive's bearer-token
// authorization scheme.
func attachBearer(req *http.Request, token provider.AuthToken) {
	if len(token.Blob) == 0 {
		return
	}
	req.Header.Set("Authorization", "Bearer "+string(token.Blob))
}

// onTokenUpdated is the auth.Manager's persistence callback: it re-saves
// this account's Credentials through Settings whenever a refresh rotated
// the refresh token, so a later restart restores with the live one
// instead of one Google has already invalidated. It is a no-op until
// GetGeneralData has run once and learned this account's id (the very
// first refresh, triggered from within New before the account id
// exists, has nothing to key a persisted row by — CreateAccount persists
// the original token itself immediately afterward).
func (p *Provider) onTokenUpdated(ctx context.Context, _ provider.AuthToken) {
	if p.settings == nil {
		return
	}
	p.mu.Lock()
	accountID := p.accountID
	creds := p.creds
	p.mu.Unlock()
	if accountID == "" {
		return
	}
	blob, err := json.Marshal(creds)
	if err != nil {
		return
	}
	p.settings.PutToken(ctx, accountID, provider.AuthToken{TypeTag: p.Type(), Blob: blob})
}

// authTransport routes every outbound Drive request through the
// account's auth.Manager instead of a bare oauth2-wrapped client, so
// 401s join the shared refresh barrier rather than each minting (or
// trusting a locally-cached) token independently.
type authTransport struct {
	mgr  *auth.Manager
	base http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.mgr.Fetch(req.Context(), req, t.base.RoundTrip)
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case errs.NotFound, errs.Unauthorized, errs.Retry, errs.Unsupported, errs.Invalid, errs.Cancelled, *errs.HttpError, *errs.Io:
		// Already one of ours: authTransport's Manager.Fetch translates
		// non-2xx responses into these before the Drive client ever sees
		// a *googleapi.Error, so this is now the common case.
		return err
	}
	if ge, ok := err.(*googleapi.Error); ok {
		switch ge.Code {
		case http.StatusNotFound:
			return errs.NotFound(op)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errs.Unauthorized(op)
		}
		return &errs.HttpError{Status: ge.Code, Body: []byte(ge.Message)}
	}
	return &errs.Io{Op: op, Err: err}
}

func toItem(f *drive.File) provider.Item {
	if f.MimeType == "application/vnd.google-apps.folder" {
		return provider.Item{Kind: provider.KindDirectory, ID: provider.ID(f.Id), Name: f.Name, Timestamp: parseTime(f.ModifiedTime)}
	}
	size := f.Size
	return provider.Item{Kind: provider.KindFile, ID: provider.ID(f.Id), Name: f.Name, Size: &size, MimeType: f.MimeType, Timestamp: parseTime(f.ModifiedTime)}
}

// parseTime parses Drive's RFC3339 modifiedTime, returning nil if it's
// empty or malformed rather than failing the whole Item conversion.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func (p *Provider) GetRoot(ctx context.Context) (provider.Item, error) {
	f, err := p.svc.Files.Get("root").Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return provider.Item{}, wrapErr("get_root", err)
	}
	return provider.Item{Kind: provider.KindDirectory, ID: provider.ID(f.Id), Name: ""}, nil
}

// GetGeneralData also learns this account's id as a side effect, the
// first time it succeeds, so onTokenUpdated has somewhere to persist a
// rotated refresh token on every refresh after this one.
func (p *Provider) GetGeneralData(ctx context.Context) (provider.GeneralData, error) {
	about, err := p.svc.About.Get().Fields("user,storageQuota").Context(ctx).Do()
	if err != nil {
		return provider.GeneralData{}, wrapErr("get_general_data", err)
	}
	gd := provider.GeneralData{}
	if about.User != nil {
		gd.Username = about.User.EmailAddress
		p.mu.Lock()
		p.username = gd.Username
		p.accountID = fmt.Sprintf("[gdrive] %s", gd.Username)
		p.mu.Unlock()
	}
	if about.StorageQuota != nil {
		used, total := about.StorageQuota.Usage, about.StorageQuota.Limit
		gd.SpaceUsed = &used
		if total > 0 {
			gd.SpaceTotal = &total
		}
	}
	return gd, nil
}

func (p *Provider) ListDirectoryPage(ctx context.Context, dir provider.Item, pageToken string) (provider.PageData, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", dir.ID)
	call := p.svc.Files.List().Q(q).Fields(listFields).PageSize(200).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	list, err := call.Do()
	if err != nil {
		return provider.PageData{}, wrapErr("list_directory_page", err)
	}
	items := make([]provider.Item, 0, len(list.Files))
	for _, f := range list.Files {
		items = append(items, toItem(f))
	}
	return provider.PageData{Items: items, NextPageToken: list.NextPageToken}, nil
}

func (p *Provider) GetFileContent(ctx context.Context, file provider.Item, rng provider.Range) (provider.Content, error) {
	call := p.svc.Files.Get(string(file.ID)).Context(ctx)
	total := int64(-1)
	if file.Size != nil {
		total = *file.Size
	}
	length := int64(-1)
	if total >= 0 {
		end := rng.ResolveEnd(total)
		call.Header().Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Start, end))
		length = rng.Length(total)
	} else if rng.Start > 0 {
		call.Header().Set("Range", fmt.Sprintf("bytes=%d-", rng.Start))
	}
	resp, err := call.Download()
	if err != nil {
		return provider.Content{}, wrapErr("get_file_content", err)
	}
	return provider.Content{Body: resp.Body, ContentLength: length}, nil
}

func (p *Provider) CreateDirectory(ctx context.Context, parent provider.Item, name string) (provider.Item, error) {
	f, err := p.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
		Parents:  []string{string(parent.ID)},
	}).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return provider.Item{}, wrapErr("create_directory", err)
	}
	return toItem(f), nil
}

func (p *Provider) CreateFile(ctx context.Context, parent provider.Item, name string, content io.Reader, size int64) (provider.Item, error) {
	f, err := p.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{string(parent.ID)},
	}).Media(content).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return provider.Item{}, wrapErr("create_file", err)
	}
	return toItem(f), nil
}

func (p *Provider) Rename(ctx context.Context, item provider.Item, newName string) (provider.Item, error) {
	f, err := p.svc.Files.Update(string(item.ID), &drive.File{Name: newName}).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return provider.Item{}, wrapErr("rename", err)
	}
	return toItem(f), nil
}

func (p *Provider) Move(ctx context.Context, item provider.Item, destinationDir provider.Item) (provider.Item, error) {
	existing, err := p.svc.Files.Get(string(item.ID)).Fields("parents").Context(ctx).Do()
	if err != nil {
		return provider.Item{}, wrapErr("move", err)
	}
	call := p.svc.Files.Update(string(item.ID), &drive.File{}).AddParents(string(destinationDir.ID)).Fields(fileFields).Context(ctx)
	if len(existing.Parents) > 0 {
		call = call.RemoveParents(existing.Parents[0])
	}
	f, err := call.Do()
	if err != nil {
		return provider.Item{}, wrapErr("move", err)
	}
	return toItem(f), nil
}

func (p *Provider) Remove(ctx context.Context, item provider.Item) error {
	return wrapErr("remove", p.svc.Files.Delete(string(item.ID)).Context(ctx).Do())
}

// GetThumbnail fetches Drive's own thumbnailLink when present, the
// provider-native path spec.md §4.7's fallback chain starts from. The
// fetch itself goes through p.http, so it too is mediated by the
// account's auth.Manager.
func (p *Provider) GetThumbnail(ctx context.Context, item provider.Item, quality provider.ThumbnailQuality, rng provider.Range) (provider.Thumbnail, error) {
	f, err := p.svc.Files.Get(string(item.ID)).Fields("thumbnailLink").Context(ctx).Do()
	if err != nil {
		return provider.Thumbnail{}, wrapErr("get_thumbnail", err)
	}
	if f.ThumbnailLink == "" {
		return provider.Thumbnail{}, errs.NotFound("drive reported no thumbnailLink for this file")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ThumbnailLink, nil)
	if err != nil {
		return provider.Thumbnail{}, &errs.Io{Op: "get_thumbnail", Err: err}
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return provider.Thumbnail{}, wrapErr("get_thumbnail", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return provider.Thumbnail{}, errs.NotFound("thumbnail fetch failed")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.Thumbnail{}, &errs.Io{Op: "get_thumbnail", Err: err}
	}
	return provider.Thumbnail{Bytes: data, Size: int64(len(data)), MimeType: resp.Header.Get("Content-Type")}, nil
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
	f, err := p.svc.Files.Get(string(ji.ID)).Fields(fileFields).Context(context.Background()).Do()
	if err != nil {
		return provider.Item{}, wrapErr("stat", err)
	}
	return toItem(f), nil
}

// IsFileContentSizeRequired is false: Files.Create's Media upload
// streams without a known length.
func (p *Provider) IsFileContentSizeRequired(ctx context.Context, dir provider.Item) bool { return false }
