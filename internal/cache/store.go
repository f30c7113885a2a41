package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/blahbox/internal/model"
)

var (
	// ErrCacheWrite reports a failed cache write. The persistent store is
	// authoritative, so callers log this and move on.
	ErrCacheWrite = errors.New("cache write failed")
	// ErrCacheConsistency reports a CAS loop that exhausted its retry budget.
	ErrCacheConsistency = errors.New("cache state conflict, retries exhausted")
)

const defaultCASRetries = 16

// Store is the Redis-backed inbox cache: item snapshots by key plus one
// InboxState per (group, inbox), updated through a compare-and-swap loop so
// concurrent distributors never lose an append.
type Store struct {
	rdb        *redis.Client
	itemTTL    time.Duration
	stateTTL   time.Duration
	casRetries int
}

// NewStore builds a cache store. casRetries <= 0 selects the default budget.
func NewStore(rdb *redis.Client, itemTTL, stateTTL time.Duration, casRetries int) *Store {
	if casRetries <= 0 {
		casRetries = defaultCASRetries
	}
	return &Store{rdb: rdb, itemTTL: itemTTL, stateTTL: stateTTL, casRetries: casRetries}
}

// SetInboxItem upserts an item snapshot under its item key with the configured TTL.
func (s *Store) SetInboxItem(ctx context.Context, item *model.InboxItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("%w: marshal item %s: %v", ErrCacheWrite, item.ID, err)
	}
	if err := s.rdb.Set(ctx, ItemKey(item.ID), payload, s.itemTTL).Err(); err != nil {
		return fmt.Errorf("%w: set item %s: %v", ErrCacheWrite, item.ID, err)
	}
	return nil
}

// GetInboxState point-reads the state for (groupID, inboxNumber). Absence is
// (nil, nil), not an error.
func (s *Store) GetInboxState(ctx context.Context, groupID string, inboxNumber int) (*model.InboxState, error) {
	data, err := s.rdb.Get(ctx, StateKey(groupID, inboxNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inbox state %s/%d: %w", groupID, inboxNumber, err)
	}
	var st model.InboxState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode inbox state %s/%d: %w", groupID, inboxNumber, err)
	}
	return &st, nil
}

// CASUpdateInboxState runs a read-modify-write loop on the state key: read the
// current state (absent counts as empty with TopInbox 0), apply mutate, write
// back only if no concurrent writer touched the key since the read. Conflicts
// retry with a fresh read; an exhausted budget returns ErrCacheConsistency.
// On success the state that was written is returned.
func (s *Store) CASUpdateInboxState(ctx context.Context, groupID string, inboxNumber int, mutate func(*model.InboxState)) (*model.InboxState, error) {
	key := StateKey(groupID, inboxNumber)
	var written *model.InboxState

	for attempt := 0; attempt < s.casRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			st := &model.InboxState{}
			data, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
				// first write to this inbox
			case err != nil:
				return err
			default:
				if uErr := json.Unmarshal(data, st); uErr != nil {
					// unreadable state is rebuilt from scratch
					st = &model.InboxState{}
				}
			}
			mutate(st)
			payload, mErr := json.Marshal(st)
			if mErr != nil {
				return mErr
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, s.stateTTL)
				return nil
			})
			if err == nil {
				written = st
			}
			return err
		}, key)
		if err == nil {
			return written, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("%w: state %s: %v", ErrCacheWrite, key, err)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrCacheConsistency, key, s.casRetries)
}

// GetInboxItemsBulk best-effort fetches the given item ids in a single MGET.
// Ids with no cached value (TTL expiry, eviction) are simply absent from the
// result map.
func (s *Store) GetInboxItemsBulk(ctx context.Context, itemIDs []string) (map[string]model.InboxItem, error) {
	if len(itemIDs) == 0 {
		return map[string]model.InboxItem{}, nil
	}
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = ItemKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("bulk get inbox items: %w", err)
	}
	out := make(map[string]model.InboxItem, len(itemIDs))
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var item model.InboxItem
		if uErr := json.Unmarshal([]byte(str), &item); uErr == nil {
			out[itemIDs[i]] = item
		}
	}
	return out, nil
}
