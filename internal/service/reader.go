package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/d60-Lab/blahbox/internal/cache"
	"github.com/d60-Lab/blahbox/internal/model"
	"github.com/d60-Lab/blahbox/internal/repository"
	"github.com/d60-Lab/blahbox/pkg/logger"
)

// InboxData is the result of a persistent-store inbox read.
type InboxData struct {
	InboxNumber int               `json:"inbox_number"`
	Items       []model.InboxItem `json:"items"`
}

// Inbox is the result of a cache-backed inbox read.
type Inbox struct {
	TopInbox int               `json:"top_inbox"`
	Items    []model.InboxItem `json:"items"`
}

// NextInboxOptions steers rotation. Explicit wins over LastSeen; with neither
// set the group's first inbox is served.
type NextInboxOptions struct {
	Explicit *int
	LastSeen *int
	Limit    int
	SafeOnly bool
}

// Reader 收件箱读取与轮换：解析"下一个收件箱"，兜底回退，分页读取
type Reader struct {
	groups       repository.GroupRepository
	collections  repository.CollectionStore
	cache        *cache.Store
	defaultLimit int
}

func NewReader(groups repository.GroupRepository, collections repository.CollectionStore, cacheStore *cache.Store, defaultLimit int) *Reader {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &Reader{groups: groups, collections: collections, cache: cacheStore, defaultLimit: defaultLimit}
}

// GetNextInbox resolves a concrete inbox number for the group via the rotation
// policy, self-heals when the resolved collection is missing, and returns up
// to Limit items in insertion order. A group or inbox that cannot be resolved
// is (nil, nil) — absence, not a fault.
func (r *Reader) GetNextInbox(ctx context.Context, groupID string, opts NextInboxOptions) (*InboxData, error) {
	g, err := r.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, nil
	}

	first, last := inboxBounds(g, opts.SafeOnly)
	target := resolveRotation(first, last, opts.Explicit, opts.LastSeen)

	ok, err := r.collections.Exists(ctx, repository.InboxCollectionName(groupID, target, opts.SafeOnly))
	if err != nil {
		return nil, err
	}
	if !ok {
		// Inbox creation is asynchronous relative to metadata updates, so the
		// bounds can point at a collection that is not materialized yet.
		target, ok, err = r.heal(ctx, g, target, opts)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = r.defaultLimit
	}
	items, err := r.readCollection(ctx, repository.InboxCollectionName(groupID, target, opts.SafeOnly), repository.OrderInsertion, limit)
	if err != nil {
		return nil, err
	}
	return &InboxData{InboxNumber: target, Items: items}, nil
}

// heal runs the fallback search: refresh the group from the authoritative
// path and recompute, then scan backward from target-1 down to 1 for the
// first collection that exists.
func (r *Reader) heal(ctx context.Context, g *model.Group, target int, opts NextInboxOptions) (int, bool, error) {
	fresh, err := r.groups.GetGroupByID(ctx, g.Locale, g.ID)
	if err == nil && fresh != nil {
		first, last := inboxBounds(fresh, opts.SafeOnly)
		recomputed := resolveRotation(first, last, opts.Explicit, opts.LastSeen)
		ok, exErr := r.collections.Exists(ctx, repository.InboxCollectionName(g.ID, recomputed, opts.SafeOnly))
		if exErr != nil {
			return 0, false, exErr
		}
		if ok {
			return recomputed, true, nil
		}
		target = recomputed
	} else if err != nil {
		logger.Warn("group refresh failed during inbox fallback",
			zap.String("group", g.ID), zap.Error(err))
	}

	for n := target - 1; n >= 1; n-- {
		ok, exErr := r.collections.Exists(ctx, repository.InboxCollectionName(g.ID, n, opts.SafeOnly))
		if exErr != nil {
			return 0, false, exErr
		}
		if ok {
			return n, true, nil
		}
	}
	return 0, false, nil
}

// GetRecentsInbox returns the group's newest items, newest first. An absent
// recents collection reads as empty.
func (r *Reader) GetRecentsInbox(ctx context.Context, groupID string, limit int) (*InboxData, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	name := repository.RecentsCollectionName(groupID)
	ok, err := r.collections.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &InboxData{Items: []model.InboxItem{}}, nil
	}
	items, err := r.readCollection(ctx, name, repository.OrderReverse, limit)
	if err != nil {
		return nil, err
	}
	return &InboxData{Items: items}, nil
}

// GetInboxFromCache serves the hot read path entirely out of the cache. A
// missing InboxState returns (nil, nil) — "no such inbox", distinct from an
// inbox that exists but is empty. Item references evicted between the state
// read and the bulk fetch are silently dropped.
func (r *Reader) GetInboxFromCache(ctx context.Context, groupID string, inboxNumber int, start, count *int, sortField string, dir SortDirection) (*Inbox, error) {
	st, err := r.cache.GetInboxState(ctx, groupID, inboxNumber)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	if len(st.ItemIDs) == 0 {
		return &Inbox{TopInbox: st.TopInbox, Items: []model.InboxItem{}}, nil
	}

	fetched, err := r.cache.GetInboxItemsBulk(ctx, st.ItemIDs)
	if err != nil {
		return nil, err
	}
	items := make([]model.InboxItem, 0, len(st.ItemIDs))
	for _, id := range st.ItemIDs {
		if it, ok := fetched[id]; ok {
			items = append(items, it)
		}
	}

	applySort(items, sortField, dir)
	return &Inbox{TopInbox: st.TopInbox, Items: window(items, start, count)}, nil
}

func (r *Reader) readCollection(ctx context.Context, name string, order repository.FindOrder, limit int) ([]model.InboxItem, error) {
	docs, err := r.collections.Find(ctx, name, order, limit)
	if err != nil {
		return nil, err
	}
	items := make([]model.InboxItem, 0, len(docs))
	for _, doc := range docs {
		var it model.InboxItem
		if uErr := json.Unmarshal(doc, &it); uErr != nil {
			logger.Warn("skipping undecodable inbox doc", zap.String("collection", name), zap.Error(uErr))
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// inboxBounds picks the bound pair for the rotation mode. Unknown bounds are 0.
func inboxBounds(g *model.Group, safeOnly bool) (first, last int) {
	f, l := g.FirstInbox, g.LastInbox
	if safeOnly {
		f, l = g.FirstSafeInbox, g.LastSafeInbox
	}
	if f != nil {
		first = *f
	}
	if l != nil {
		last = *l
	}
	return first, last
}

// resolveRotation applies the rotation priority order: an in-range explicit
// number as-is, an out-of-range one clamped to first, otherwise advance past
// lastSeen with wrap-around, defaulting to first.
func resolveRotation(first, last int, explicit, lastSeen *int) int {
	switch {
	case explicit != nil && *explicit >= first && *explicit <= last:
		return *explicit
	case explicit != nil:
		return first
	case lastSeen != nil && *lastSeen >= first && *lastSeen < last:
		return *lastSeen + 1
	default:
		return first
	}
}
