package service

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/d60-Lab/blahbox/internal/cache"
	"github.com/d60-Lab/blahbox/internal/model"
	"github.com/d60-Lab/blahbox/internal/repository"
	"github.com/d60-Lab/blahbox/pkg/logger"
)

// DistributorConfig carries the capacity budgets for the collections the
// distributor creates on demand.
type DistributorConfig struct {
	InboxMaxItems   int64
	InboxMaxBytes   int64
	RecentsMaxItems int64
	RecentsMaxBytes int64
}

// Distributor 新内容扇入：选箱、落库、更新状态、刷缓存、追加 recents
// The persistent writes are authoritative and fatal on failure; the cache
// writes are a secondary view and never fail the operation.
type Distributor struct {
	collections repository.CollectionStore
	states      repository.InboxStateRepository
	cache       *cache.Store
	cfg         DistributorConfig
	hw          *highWaterMap
}

func NewDistributor(collections repository.CollectionStore, states repository.InboxStateRepository, cacheStore *cache.Store, cfg DistributorConfig) *Distributor {
	return &Distributor{
		collections: collections,
		states:      states,
		cache:       cacheStore,
		cfg:         cfg,
		hw:          newHighWaterMap(),
	}
}

// Distribute snapshots the blah and fans it into one of the group's numbered
// inboxes plus the group's recents feed.
func (d *Distributor) Distribute(ctx context.Context, blah *model.Blah, groupID string) error {
	item := model.NewInboxItem(blah)
	item.GroupID = groupID

	target := d.pickInbox(groupID)

	name := repository.InboxCollectionName(groupID, target, false)
	if err := d.ensureCollection(ctx, name, d.cfg.InboxMaxItems, d.cfg.InboxMaxBytes); err != nil {
		return fmt.Errorf("%w: ensure inbox %s: %v", ErrSystem, name, err)
	}
	if err := d.collections.Insert(ctx, name, item); err != nil {
		return fmt.Errorf("%w: insert into %s: %v", ErrSystem, name, err)
	}
	if err := d.states.Append(ctx, groupID, target, item.ID); err != nil {
		return fmt.Errorf("%w: inbox state %s/%d: %v", ErrSystem, groupID, target, err)
	}

	// Secondary, best-effort view: the item stays reachable through the
	// persistent store even when the cache write drops.
	d.updateCache(ctx, groupID, target, item)

	recents := repository.RecentsCollectionName(groupID)
	if err := d.ensureCollection(ctx, recents, d.cfg.RecentsMaxItems, d.cfg.RecentsMaxBytes); err != nil {
		return fmt.Errorf("%w: ensure recents %s: %v", ErrSystem, recents, err)
	}
	if err := d.collections.Insert(ctx, recents, item); err != nil {
		return fmt.Errorf("%w: insert into %s: %v", ErrSystem, recents, err)
	}
	return nil
}

// pickInbox spreads new content uniformly over [0, maxKnownInbox]. A group
// with no known inboxes always gets inbox 0.
func (d *Distributor) pickInbox(groupID string) int {
	hw := d.hw.Get(groupID)
	if hw <= 0 {
		return 0
	}
	return rand.Intn(hw + 1)
}

func (d *Distributor) ensureCollection(ctx context.Context, name string, maxItems, maxBytes int64) error {
	ok, err := d.collections.Exists(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return d.collections.CreateCapped(ctx, name, maxItems, maxBytes)
}

func (d *Distributor) updateCache(ctx context.Context, groupID string, inboxNumber int, item *model.InboxItem) {
	if err := d.cache.SetInboxItem(ctx, item); err != nil {
		logger.Warn("inbox item cache write dropped",
			zap.String("group", groupID), zap.Int("inbox", inboxNumber),
			zap.String("item", item.ID), zap.Error(err))
	}
	st, err := d.cache.CASUpdateInboxState(ctx, groupID, inboxNumber, func(st *model.InboxState) {
		st.ItemIDs = append(st.ItemIDs, item.ID)
		if inboxNumber > st.TopInbox {
			st.TopInbox = inboxNumber
		}
	})
	if err != nil {
		logger.Warn("inbox state cache update dropped",
			zap.String("group", groupID), zap.Int("inbox", inboxNumber), zap.Error(err))
		return
	}
	// a fresher TopInbox observed from the cache raises the advisory mark
	d.hw.Observe(groupID, st.TopInbox)
}

// ObserveTopInbox feeds an externally observed high-water mark into the
// distributor's advisory map (used by read paths that see fresher state).
func (d *Distributor) ObserveTopInbox(groupID string, topInbox int) {
	d.hw.Observe(groupID, topInbox)
}
