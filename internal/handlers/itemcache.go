package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudgate/cloudgate/internal/account"
	"github.com/cloudgate/cloudgate/internal/cachemgr"
	"github.com/cloudgate/cloudgate/internal/errs"
	"github.com/cloudgate/cloudgate/internal/provider"
)

// itemKey and dirKey build the Item(id)/ParentDirectory(id) logical keys
// spec.md §4.4's key space names.
func itemKey(id provider.ID) string         { return fmt.Sprintf("Item(%s)", id) }
func dirKey(id provider.ID) string          { return fmt.Sprintf("ParentDirectory(%s)", id) }
func imageKey(id provider.ID, q int) string { return fmt.Sprintf("Image(%s,%d)", id, q) }

// lookupItem resolves id to an Item via the Item(id) cache entry, which
// is populated as a side effect of every directory listing that
// observed it (listDirectory below). There is no Provider operation to
// refresh a single item by id in isolation, so this is a pure lookup
// against whatever was last cached — spec.md's raw get() primitive, not
// the stale-first/background-refresh read path.
func (h *Handlers) lookupItem(ctx context.Context, acc *account.Account, id provider.ID) (provider.Item, error) {
	val, present, err := h.Cache.Peek(ctx, acc.CacheKey(itemKey(id)))
	if err != nil {
		return provider.Item{}, err
	}
	if !present {
		return provider.Item{}, errs.NotFound(string(id))
	}
	return acc.Provider.FromJSON(val.Data)
}

// cacheItem stores item's descriptor under its Item(id) key.
func (h *Handlers) cacheItem(ctx context.Context, acc *account.Account, item provider.Item) {
	data, err := acc.Provider.ToJSON(item)
	if err != nil {
		return
	}
	h.Cache.Put(ctx, acc.CacheKey(itemKey(item.ID)), cachemgr.Value{Data: data})
}

func (h *Handlers) cacheItems(ctx context.Context, acc *account.Account, items []provider.Item) {
	for _, it := range items {
		h.cacheItem(ctx, acc, it)
	}
}

// listDirectory answers dir's children stale-first through the
// ParentDirectory(id) cache entry, per spec.md §4.4: cached pages are
// returned immediately when present while a background task re-lists
// the directory in full and overwrites the entry on a mismatch. On a
// cold (never-cached) directory this blocks on that same background
// fetch, since there is nothing stale to return yet.
func (h *Handlers) listDirectory(ctx context.Context, acc *account.Account, dir provider.Item) ([]provider.Item, error) {
	key := acc.CacheKey(dirKey(dir.ID))
	refresh := func(ctx context.Context) (cachemgr.Value, error) {
		items, err := fetchAllPages(ctx, acc.Provider, dir)
		if err != nil {
			return cachemgr.Value{}, err
		}
		data, err := marshalItems(acc.Provider, items)
		if err != nil {
			return cachemgr.Value{}, err
		}
		return cachemgr.Value{Data: data}, nil
	}

	versioned, err := h.Cache.Get(ctx, key, false, refresh)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch {
	case versioned.Present:
		data = versioned.Value.Data
	default:
		newVal, err := versioned.Updated.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if newVal == nil {
			return nil, errs.NotFound(string(dir.ID))
		}
		data = newVal.Data
	}

	items, err := unmarshalItems(acc.Provider, data)
	if err != nil {
		return nil, err
	}
	h.cacheItems(ctx, acc, items)
	return items, nil
}

// fetchAllPages drains list_directory_page to completion, honoring
// spec.md §8's "multiset of items visited equals the union across
// returned pages" invariant.
func fetchAllPages(ctx context.Context, prov provider.Provider, dir provider.Item) ([]provider.Item, error) {
	var out []provider.Item
	pageToken := ""
	for {
		page, err := prov.ListDirectoryPage(ctx, dir, pageToken)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// marshalItems/unmarshalItems wrap each Item's provider-specific
// ToJSON/FromJSON round-trip in a stable JSON array envelope, so a
// directory listing's cached value is comparable by the Cache Manager's
// element-wise JSON equality (spec.md §4.4).
func marshalItems(prov provider.Provider, items []provider.Item) ([]byte, error) {
	raw := make([]json.RawMessage, len(items))
	for i, it := range items {
		data, err := prov.ToJSON(it)
		if err != nil {
			return nil, err
		}
		raw[i] = data
	}
	return json.Marshal(raw)
}

func unmarshalItems(prov provider.Provider, data []byte) ([]provider.Item, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &errs.Io{Op: "unmarshal_directory_cache", Err: err}
	}
	items := make([]provider.Item, len(raw))
	for i, r := range raw {
		it, err := prov.FromJSON(r)
		if err != nil {
			return nil, err
		}
		items[i] = it
	}
	return items, nil
}
