package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudgate/cloudgate/internal/errs"
)

// Registry is the Provider Factory: a runtime-dispatched constructor table
// keyed by provider type tag. This replaces the source's compile-time
// type-list/variant enumeration (spec.md §9) with the same pattern the
// teacher used for its provider registry, generalized from "provider
// instances" to "provider constructors".
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a constructor for the given type tag. Re-registering the
// same tag overwrites the previous constructor, so callers can register
// fallback/unsupported stubs first and overwrite them as real backends
// come online.
func (r *Registry) Register(typeTag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeTag] = f
}

// Types returns every registered type tag.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	return out
}

// Create instantiates a Provider of the given type from an AuthToken.
func (r *Registry) Create(ctx context.Context, typeTag string, token AuthToken) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[typeTag]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Invalid(fmt.Sprintf("unknown provider type %q", typeTag))
	}
	return f(ctx, token)
}

// unsupportedFactory returns a Factory that always fails with Unsupported,
// used by RegisterStub for a type tag that has no live backend, so the tag
// routes through the same Factory contract and fails predictably rather
// than being unknown-type Invalid. (The Dropbox, Box, OneDrive, pCloud,
// Mega, Yandex Disk and HubiC tags are registered with the rclone Provider
// in internal/cli/registry.go, not with this stub.)
func unsupportedFactory(typeTag string) Factory {
	return func(ctx context.Context, token AuthToken) (Provider, error) {
		return nil, errs.Unsupported(fmt.Sprintf("provider type %q is recognized but not wired to a live backend in this build", typeTag))
	}
}

// RegisterStub registers typeTag so it is recognized by the Factory (and
// so Create returns Unsupported rather than Invalid for it) without
// providing a working backend.
func (r *Registry) RegisterStub(typeTag string) {
	r.Register(typeTag, unsupportedFactory(typeTag))
}
