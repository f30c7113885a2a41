package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/blahbox/internal/cache"
	"github.com/d60-Lab/blahbox/internal/model"
	"github.com/d60-Lab/blahbox/internal/repository"
)

type testEnv struct {
	db          *gorm.DB
	mr          *miniredis.Miniredis
	cache       *cache.Store
	collections repository.CollectionStore
	states      repository.InboxStateRepository
	groups      repository.GroupRepository
	dist        *Distributor
	reader      *Reader
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Blah{},
		&model.Group{},
		&model.InboxStateRecord{},
		&model.CappedCollection{},
		&model.CollectionDoc{},
	))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		db:          db,
		mr:          mr,
		cache:       cache.NewStore(client, time.Minute, time.Minute, 16),
		collections: repository.NewCollectionStore(db),
		states:      repository.NewInboxStateRepository(db),
		groups:      repository.NewGroupRepository(db),
	}
	env.dist = NewDistributor(env.collections, env.states, env.cache, DistributorConfig{
		InboxMaxItems: 100, InboxMaxBytes: 1 << 20,
		RecentsMaxItems: 100, RecentsMaxBytes: 1 << 20,
	})
	env.reader = NewReader(env.groups, env.collections, env.cache, 50)
	return env
}

func intp(v int) *int { return &v }

// seedGroup registers a group with identical safe and unsafe bounds.
func (e *testEnv) seedGroup(t *testing.T, id string, first, last int) {
	t.Helper()
	require.NoError(t, e.groups.Upsert(context.Background(), &model.Group{
		ID: id, Locale: "en",
		FirstInbox: intp(first), LastInbox: intp(last),
		FirstSafeInbox: intp(first), LastSafeInbox: intp(last),
	}))
}

// seedInbox creates the numbered collection and optionally drops items into it.
func (e *testEnv) seedInbox(t *testing.T, groupID string, n int, items ...*model.InboxItem) {
	t.Helper()
	ctx := context.Background()
	name := repository.InboxCollectionName(groupID, n, false)
	require.NoError(t, e.collections.CreateCapped(ctx, name, 100, 0))
	for _, it := range items {
		require.NoError(t, e.collections.Insert(ctx, name, it))
	}
}
