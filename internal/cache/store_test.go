package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/blahbox/internal/model"
)

func newTestStore(t *testing.T, casRetries int) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Minute, time.Minute, casRetries), mr
}

func TestKeyNamespaces(t *testing.T) {
	require.Equal(t, "i:g1-3", StateKey("g1", 3))
	require.Equal(t, "I:abc", ItemKey("abc"))
	// the two namespaces must never collide on the same id material
	require.NotEqual(t, StateKey("x", 1)[:2], ItemKey("x-1")[:2])
}

func TestGetInboxStateAbsent(t *testing.T) {
	store, _ := newTestStore(t, 0)
	st, err := store.GetInboxState(context.Background(), "g1", 0)
	require.NoError(t, err)
	require.Nil(t, st)
}

func TestCASCreatesStateOnFirstWrite(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	written, err := store.CASUpdateInboxState(ctx, "g1", 4, func(st *model.InboxState) {
		st.ItemIDs = append(st.ItemIDs, "item-1")
		if st.TopInbox < 4 {
			st.TopInbox = 4
		}
	})
	require.NoError(t, err)
	require.Equal(t, []string{"item-1"}, written.ItemIDs)
	require.Equal(t, 4, written.TopInbox)

	st, err := store.GetInboxState(ctx, "g1", 4)
	require.NoError(t, err)
	require.Equal(t, written, st)
}

func TestCASAppendKeepsOrder(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		id := id
		_, err := store.CASUpdateInboxState(ctx, "g1", 0, func(st *model.InboxState) {
			st.ItemIDs = append(st.ItemIDs, id)
		})
		require.NoError(t, err)
	}

	st, err := store.GetInboxState(ctx, "g1", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, st.ItemIDs)
}

// Concurrent appends to one inbox must serialize through the CAS loop with no
// lost or duplicated entries.
func TestCASConcurrentAppends(t *testing.T) {
	store, _ := newTestStore(t, 128)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("item-%02d", i)
			_, errs[i] = store.CASUpdateInboxState(ctx, "g1", 2, func(st *model.InboxState) {
				st.ItemIDs = append(st.ItemIDs, id)
				if st.TopInbox < 2 {
					st.TopInbox = 2
				}
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	st, err := store.GetInboxState(ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, st.ItemIDs, n)
	seen := make(map[string]bool, n)
	for _, id := range st.ItemIDs {
		require.False(t, seen[id], "duplicate entry %s", id)
		seen[id] = true
	}
	require.Equal(t, 2, st.TopInbox)
}

func TestSetAndBulkGetItems(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		item := &model.InboxItem{ID: fmt.Sprintf("it-%d", i), AuthorID: "a1", GroupID: "g1", Text: "hi"}
		require.NoError(t, store.SetInboxItem(ctx, item))
	}

	// "it-9" was never cached: absent from the result, not an error
	got, err := store.GetInboxItemsBulk(ctx, []string{"it-0", "it-9", "it-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "hi", got["it-0"].Text)
	_, ok := got["it-9"]
	require.False(t, ok)
}

func TestGetInboxItemsBulkEmpty(t *testing.T) {
	store, _ := newTestStore(t, 0)
	got, err := store.GetInboxItemsBulk(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWriteErrorsWhenCacheDown(t *testing.T) {
	store, mr := newTestStore(t, 0)
	ctx := context.Background()
	mr.Close()

	err := store.SetInboxItem(ctx, &model.InboxItem{ID: "x"})
	require.ErrorIs(t, err, ErrCacheWrite)

	_, err = store.CASUpdateInboxState(ctx, "g1", 0, func(st *model.InboxState) {
		st.ItemIDs = append(st.ItemIDs, "x")
	})
	require.ErrorIs(t, err, ErrCacheWrite)
}
