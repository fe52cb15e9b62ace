// Package provider defines the Abstract Provider contract: a single
// polymorphic interface that every storage backend (Google Drive, Dropbox,
// Box, OneDrive, pCloud, Mega, Yandex Disk, S3, WebDAV, HubiC, local
// filesystem) satisfies, so every upper layer speaks to one surface
// regardless of which cloud sits behind it.
//
// Providers are treated as plugins, the same way the teacher's
// internal/provider package and its rclone implementation treat storage
// backends: the registry knows how to construct one from a type tag, and
// nothing upstream imports a concrete provider package directly.
package provider

import (
	"context"
	"io"
	"time"
)

// ItemKind distinguishes the two variants of Item. A tagged enum rather
// than a class hierarchy, because upper layers always want exhaustive
// matching and because providers attach different optional fields to each
// kind.
type ItemKind int

const (
	KindFile ItemKind = iota
	KindDirectory
)

func (k ItemKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// ID is an opaque string unique within an account. Stable across reloads
// of the same account; never mutated.
type ID string

// Item is the File|Directory variant type every Provider operation
// returns. Exactly one of the kind-specific optional fields is meaningful,
// selected by Kind.
type Item struct {
	Kind ItemKind
	ID   ID
	Name string

	// File-only. Size present implies the byte length of content at fetch
	// time equals it, barring concurrent modification upstream.
	Size     *int64
	MimeType string

	// Present on both kinds when the provider reports it.
	Timestamp *time.Time

	// ProviderPayload is an opaque, provider-specific descriptor (the
	// "boxed impl" mentioned in the source's std::any equivalent) that
	// upper layers do not inspect. No provider in this tree sets it, and
	// no provider's ToJSON/FromJSON carries it.
	ProviderPayload []byte
}

// IsFile reports whether this Item is a File.
func (it Item) IsFile() bool { return it.Kind == KindFile }

// IsDirectory reports whether this Item is a Directory.
func (it Item) IsDirectory() bool { return it.Kind == KindDirectory }

// PageData is one page of a directory listing. NextPageToken absent means
// this was the final page. Single-use: callers should not retain a
// PageData across subsequent calls.
type PageData struct {
	Items         []Item
	NextPageToken string // empty means no further pages
}

// GeneralData answers "who am I, how much room is left".
type GeneralData struct {
	Username    string
	SpaceUsed   *int64
	SpaceTotal  *int64
}

// Range is a byte interval [Start, End] with both ends inclusive. End absent (nil) means
// "to EOF".
type Range struct {
	Start int64
	End   *int64 // inclusive
}

// ResolveEnd returns the inclusive end of the range against a known total
// size, applying the "end absent -> total-1" default from the streaming
// pipeline's range semantics.
func (r Range) ResolveEnd(total int64) int64 {
	if r.End != nil {
		if *r.End < total-1 {
			return *r.End
		}
		return total - 1
	}
	return total - 1
}

// Length returns the byte count this range covers against total, per the
// spec invariant: min(end, total-1) - start + 1.
func (r Range) Length(total int64) int64 {
	end := r.ResolveEnd(total)
	n := end - r.Start + 1
	if n < 0 {
		return 0
	}
	return n
}

// ThumbnailQuality selects which rendition a provider (or the fallback
// Thumbnailer) should produce.
type ThumbnailQuality int

const (
	QualityLow ThumbnailQuality = iota
	QualityHigh
)

// Thumbnail is the result of get_thumbnail.
type Thumbnail struct {
	Bytes    []byte
	Size     int64
	MimeType string
}

// Content is a lazy byte sequence plus its advertised length, if the
// provider can supply one up front (most ranged-GET backends can).
type Content struct {
	Body          io.ReadCloser
	ContentLength int64 // -1 if unknown
}

// AuthToken is the opaque, provider-specific credential blob a Provider was
// constructed with, or refreshed into. TypeTag groups tokens logically
// (e.g. "oauth2", "basic", "apikey") without the Abstract Provider needing
// to understand the payload.
type AuthToken struct {
	TypeTag string          `json:"type"`
	Blob    []byte          `json:"blob"`
}

// Provider is the Abstract Provider contract from spec.md §4.1. Every
// concrete backend implements exactly this surface; callers never see the
// concrete type.
type Provider interface {
	// Type returns the provider type tag this instance was constructed
	// for (e.g. "gdrive", "s3", "webdav", "local").
	Type() string

	GetRoot(ctx context.Context) (Item, error)
	ListDirectoryPage(ctx context.Context, dir Item, pageToken string) (PageData, error)
	GetGeneralData(ctx context.Context) (GeneralData, error)
	GetFileContent(ctx context.Context, file Item, rng Range) (Content, error)
	CreateDirectory(ctx context.Context, parent Item, name string) (Item, error)
	CreateFile(ctx context.Context, parent Item, name string, content io.Reader, size int64) (Item, error)
	Rename(ctx context.Context, item Item, newName string) (Item, error)
	Move(ctx context.Context, item Item, destinationDir Item) (Item, error)
	Remove(ctx context.Context, item Item) error
	GetThumbnail(ctx context.Context, item Item, quality ThumbnailQuality, rng Range) (Thumbnail, error)

	// ToJSON/FromJSON round-trip an Item descriptor. Implementations must
	// satisfy FromJSON(ToJSON(x)) == x.
	ToJSON(item Item) ([]byte, error)
	FromJSON(data []byte) (Item, error)

	// IsFileContentSizeRequired is a pure capability query: does PUT /
	// create_file need to know the size up front on this backend.
	IsFileContentSizeRequired(ctx context.Context, dir Item) bool
}

// Factory constructs a Provider instance given its type tag and an
// AuthToken. Returned by the registry; the Account Manager never imports a
// concrete provider package.
type Factory func(ctx context.Context, token AuthToken) (Provider, error)
