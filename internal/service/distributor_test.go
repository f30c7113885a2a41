package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/blahbox/internal/model"
	"github.com/d60-Lab/blahbox/internal/repository"
)

func newBlah(id, groupID string) *model.Blah {
	return &model.Blah{
		ID:        id,
		AuthorID:  "author-1",
		GroupID:   groupID,
		Text:      "hello " + id,
		CreatedAt: time.Now(),
	}
}

// A group with no known inboxes must land its first blah in inbox 0, readable
// right away through the cache with TopInbox 0.
func TestDistributeFirstBlah(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.dist.Distribute(ctx, newBlah("b1", "g1"), "g1"))

	st, err := env.states.Get(ctx, "g1", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"b1"}, st.ItemIDs)
	require.Equal(t, 0, st.TopInbox)

	ok, err := env.collections.Exists(ctx, repository.InboxCollectionName("g1", 0, false))
	require.NoError(t, err)
	require.True(t, ok)

	inbox, err := env.reader.GetInboxFromCache(ctx, "g1", 0, nil, nil, "", SortAscending)
	require.NoError(t, err)
	require.NotNil(t, inbox)
	require.Equal(t, 0, inbox.TopInbox)
	require.Len(t, inbox.Items, 1)
	require.Equal(t, "b1", inbox.Items[0].ID)
}

func TestDistributeAppendsWithoutLoss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	for i := 0; i < n; i++ {
		require.NoError(t, env.dist.Distribute(ctx, newBlah(fmt.Sprintf("b%d", i), "g1"), "g1"))
	}

	st, err := env.states.Get(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, st.ItemIDs, n)

	cached, err := env.cache.GetInboxState(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, cached.ItemIDs, n)
	seen := map[string]bool{}
	for _, id := range cached.ItemIDs {
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestDistributeAppendsToRecents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, env.dist.Distribute(ctx, newBlah(id, "g1"), "g1"))
	}

	data, err := env.reader.GetRecentsInbox(ctx, "g1", 0)
	require.NoError(t, err)
	ids := make([]string, len(data.Items))
	for i, it := range data.Items {
		ids[i] = it.ID
	}
	// newest first
	require.Equal(t, []string{"C", "B", "A"}, ids)
}

// Cache outages must not fail a distribution: the persistent store is
// authoritative and keeps the item reachable.
func TestDistributeSurvivesCacheOutage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mr.Close()

	require.NoError(t, env.dist.Distribute(ctx, newBlah("b1", "g1"), "g1"))

	st, err := env.states.Get(ctx, "g1", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"b1"}, st.ItemIDs)

	docs, err := env.collections.Find(ctx, repository.InboxCollectionName("g1", 0, false), repository.OrderInsertion, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestDistributeSnapshotIsDetached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	votes := int64(3)
	blah := newBlah("b1", "g1")
	blah.UpVotes = &votes
	blah.ImageIDs = []string{"img-1"}
	require.NoError(t, env.dist.Distribute(ctx, blah, "g1"))

	// mutating the source after distribution must not touch the snapshot
	votes = 99
	blah.ImageIDs[0] = "img-X"

	inbox, err := env.reader.GetInboxFromCache(ctx, "g1", 0, nil, nil, "", SortAscending)
	require.NoError(t, err)
	require.Len(t, inbox.Items, 1)
	require.Equal(t, int64(3), *inbox.Items[0].UpVotes)
	require.Equal(t, []string{"img-1"}, inbox.Items[0].ImageIDs)
}

func TestPickInboxSpreadsOverKnownRange(t *testing.T) {
	env := newTestEnv(t)

	// nothing known yet: always 0
	for i := 0; i < 10; i++ {
		require.Equal(t, 0, env.dist.pickInbox("g1"))
	}

	env.dist.ObserveTopInbox("g1", 4)
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		n := env.dist.pickInbox("g1")
		require.GreaterOrEqual(t, n, 0)
		require.LessOrEqual(t, n, 4)
		seen[n] = true
	}
	require.Greater(t, len(seen), 1, "selection should spread over existing inboxes")
}

func TestObservedTopInboxRaisesHighWater(t *testing.T) {
	env := newTestEnv(t)
	env.dist.ObserveTopInbox("g1", 5)
	env.dist.ObserveTopInbox("g1", 2) // lower observations never win
	require.Equal(t, 5, env.dist.hw.Get("g1"))
}
