// Package s3p implements the Abstract Provider contract over an S3 (or
// S3-compatible, including OpenStack Swift's S3 gateway) bucket using
// minio-go, the client SPEC_FULL.md's DOMAIN STACK names for the S3
// backend. S3 has no native directory concept, so this provider follows
// the common "/"-delimited key convention: directories are zero-byte
// objects whose key ends in "/", and listings use that delimiter to
// group children one level at a time.
package s3p

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// Provider roots the Abstract Provider contract at one bucket. Item IDs
// are the object key relative to the bucket, without a leading slash;
// directory IDs carry the trailing "/" convention internally but never
// expose it through Item.ID.
type Provider struct {
	client   *minio.Client
	bucket   string
	username string
}

// Credentials is the opaque token blob shape.
type Credentials struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Secure    bool   `json:"secure"`
}

func New(creds Credentials) (*Provider, error) {
	if creds.Endpoint == "" || creds.Bucket == "" {
		return nil, errs.Invalid("s3 endpoint and bucket are required")
	}
	client, err := minio.New(creds.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, ""),
		Secure: creds.Secure,
	})
	if err != nil {
		return nil, &errs.Io{Op: "s3_connect", Err: err}
	}
	return &Provider{client: client, bucket: creds.Bucket, username: creds.Bucket}, nil
}

// Factory adapts New into a provider.Factory. The AuthToken's Blob is a
// JSON-encoded Credentials.
func Factory() provider.Factory {
	return func(ctx context.Context, token provider.AuthToken) (provider.Provider, error) {
		var creds Credentials
		if err := json.Unmarshal(token.Blob, &creds); err != nil {
			return nil, errs.Invalid("malformed s3 credentials: " + err.Error())
		}
		return New(creds)
	}
}

func (p *Provider) Type() string { return "s3" }

// dirKey turns a directory Item ID into its "/"-terminated S3 prefix.
func dirKey(id provider.ID) string {
	k := string(id)
	if k == "" {
		return ""
	}
	if !strings.HasSuffix(k, "/") {
		k += "/"
	}
	return k
}

func childID(parent provider.ID, name string) provider.ID {
	return provider.ID(dirKey(parent) + name)
}

func baseName(key string) string {
	key = strings.TrimSuffix(key, "/")
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return errs.NotFound(op)
	}
	return &errs.Io{Op: op, Err: err}
}

func (p *Provider) GetRoot(ctx context.Context) (provider.Item, error) {
	return provider.Item{Kind: provider.KindDirectory, ID: "", Name: ""}, nil
}

func (p *Provider) GetGeneralData(ctx context.Context) (provider.GeneralData, error) {
	return provider.GeneralData{Username: p.username}, nil
}

// ListDirectoryPage lists one level under dir using the "/" delimiter.
// minio-go's ListObjects channel has no page-token continuation of its
// own (it paginates internally), so every call returns the full level
// in one page.
func (p *Provider) ListDirectoryPage(ctx context.Context, dir provider.Item, pageToken string) (provider.PageData, error) {
	prefix := dirKey(dir.ID)
	var items []provider.Item
	for obj := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return provider.PageData{}, wrapErr("list_directory_page", obj.Err)
		}
		if obj.Key == prefix {
			continue // the directory marker object for dir itself
		}
		if strings.HasSuffix(obj.Key, "/") {
			items = append(items, provider.Item{
				Kind: provider.KindDirectory,
				ID:   provider.ID(strings.TrimSuffix(obj.Key, "/")),
				Name: baseName(obj.Key),
			})
			continue
		}
		size := obj.Size
		ts := obj.LastModified
		items = append(items, provider.Item{
			Kind:      provider.KindFile,
			ID:        provider.ID(obj.Key),
			Name:      baseName(obj.Key),
			Size:      &size,
			MimeType:  obj.ContentType,
			Timestamp: &ts,
		})
	}
	return provider.PageData{Items: items}, nil
}

func (p *Provider) GetFileContent(ctx context.Context, file provider.Item, rng provider.Range) (provider.Content, error) {
	opts := minio.GetObjectOptions{}
	total := int64(-1)
	if file.Size != nil {
		total = *file.Size
	}
	if total >= 0 {
		if err := opts.SetRange(rng.Start, rng.ResolveEnd(total)); err != nil {
			return provider.Content{}, errs.Invalid("range not satisfiable")
		}
	} else if rng.Start > 0 {
		if err := opts.SetRange(rng.Start, 0); err != nil {
			return provider.Content{}, errs.Invalid("range not satisfiable")
		}
	}
	obj, err := p.client.GetObject(ctx, p.bucket, string(file.ID), opts)
	if err != nil {
		return provider.Content{}, wrapErr("get_file_content", err)
	}
	length := int64(-1)
	if total >= 0 {
		length = rng.Length(total)
	}
	return provider.Content{Body: obj, ContentLength: length}, nil
}

func (p *Provider) CreateDirectory(ctx context.Context, parent provider.Item, name string) (provider.Item, error) {
	id := childID(parent.ID, name)
	_, err := p.client.PutObject(ctx, p.bucket, dirKey(id), strings.NewReader(""), 0, minio.PutObjectOptions{})
	if err != nil {
		return provider.Item{}, wrapErr("create_directory", err)
	}
	return provider.Item{Kind: provider.KindDirectory, ID: id, Name: name}, nil
}

func (p *Provider) CreateFile(ctx context.Context, parent provider.Item, name string, content io.Reader, size int64) (provider.Item, error) {
	id := childID(parent.ID, name)
	info, err := p.client.PutObject(ctx, p.bucket, string(id), content, size, minio.PutObjectOptions{})
	if err != nil {
		return provider.Item{}, wrapErr("create_file", err)
	}
	sz := info.Size
	return provider.Item{Kind: provider.KindFile, ID: id, Name: name, Size: &sz}, nil
}

func (p *Provider) copyThenRemove(ctx context.Context, src provider.Item, newKey string, isDir bool) error {
	srcKey := string(src.ID)
	if isDir {
		srcKey = dirKey(src.ID)
	}
	_, err := p.client.CopyObject(ctx, minio.CopyDestOptions{Bucket: p.bucket, Object: newKey},
		minio.CopySrcOptions{Bucket: p.bucket, Object: srcKey})
	if err != nil {
		return wrapErr("copy", err)
	}
	return wrapErr("remove_source", p.client.RemoveObject(ctx, p.bucket, srcKey, minio.RemoveObjectOptions{}))
}

func (p *Provider) Rename(ctx context.Context, item provider.Item, newName string) (provider.Item, error) {
	parent := provider.ID(strings.TrimSuffix(string(item.ID), baseName(string(item.ID))))
	newID := childID(provider.ID(strings.TrimSuffix(string(parent), "/")), newName)
	newKey := string(newID)
	if item.IsDirectory() {
		newKey = dirKey(newID)
	}
	if err := p.copyThenRemove(ctx, item, newKey, item.IsDirectory()); err != nil {
		return provider.Item{}, err
	}
	out := item
	out.ID = newID
	out.Name = newName
	return out, nil
}

func (p *Provider) Move(ctx context.Context, item provider.Item, destinationDir provider.Item) (provider.Item, error) {
	name := baseName(string(item.ID))
	newID := childID(destinationDir.ID, name)
	newKey := string(newID)
	if item.IsDirectory() {
		newKey = dirKey(newID)
	}
	if err := p.copyThenRemove(ctx, item, newKey, item.IsDirectory()); err != nil {
		return provider.Item{}, err
	}
	out := item
	out.ID = newID
	return out, nil
}

func (p *Provider) Remove(ctx context.Context, item provider.Item) error {
	key := string(item.ID)
	if item.IsDirectory() {
		key = dirKey(item.ID)
	}
	return wrapErr("remove", p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{}))
}

// GetThumbnail always returns NotFound: S3 has no native thumbnail
// endpoint.
func (p *Provider) GetThumbnail(ctx context.Context, item provider.Item, quality provider.ThumbnailQuality, rng provider.Range) (provider.Thumbnail, error) {
	return provider.Thumbnail{}, errs.NotFound("s3 provider has no native thumbnails")
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
		return provider.Item{Kind: ji.Kind, ID: ji.ID, Name: ji.Name}, nil
	}
	info, err := p.client.StatObject(context.Background(), p.bucket, string(ji.ID), minio.StatObjectOptions{})
	if err != nil {
		return provider.Item{}, wrapErr("stat", err)
	}
	size := info.Size
	ts := info.LastModified
	return provider.Item{Kind: provider.KindFile, ID: ji.ID, Name: ji.Name, Size: &size, MimeType: info.ContentType, Timestamp: &ts}, nil
}

// IsFileContentSizeRequired is false: minio-go streams PutObject with
// an unknown size via S3's multipart upload when size is -1.
func (p *Provider) IsFileContentSizeRequired(ctx context.Context, dir provider.Item) bool { return false }
