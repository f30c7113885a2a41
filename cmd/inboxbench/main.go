package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/blahbox/internal/cache"
	"github.com/d60-Lab/blahbox/internal/model"
	"github.com/d60-Lab/blahbox/internal/repository"
	"github.com/d60-Lab/blahbox/internal/service"
	"github.com/d60-Lab/blahbox/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func main() {
	ctx := context.Background()

	N := envInt("N", 5000)        // distributes
	READS := envInt("READS", 5000) // cached reads
	CONC := envInt("CONC", 8)     // workers

	var db *gorm.DB
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db = must(gorm.Open(postgres.Open(dsn), &gorm.Config{}))
	} else {
		db = must(gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{}))
	}
	mustDo(database.Migrate(db))

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("redis at %s: %v", redisAddr, err))
	}
	client.FlushAll(ctx)

	cacheStore := cache.NewStore(client, 10*time.Minute, 10*time.Minute, 16)
	collections := repository.NewCollectionStore(db)
	states := repository.NewInboxStateRepository(db)
	groups := repository.NewGroupRepository(db)

	distributor := service.NewDistributor(collections, states, cacheStore, service.DistributorConfig{
		InboxMaxItems: 100, InboxMaxBytes: 1 << 20,
		RecentsMaxItems: 200, RecentsMaxBytes: 1 << 20,
	})
	reader := service.NewReader(groups, collections, cacheStore, 50)

	groupID := "bench-group"
	first, last := 0, 0
	mustDo(groups.Upsert(ctx, &model.Group{
		ID: groupID, Locale: "en",
		FirstInbox: &first, LastInbox: &last,
		FirstSafeInbox: &first, LastSafeInbox: &last,
	}))

	fmt.Printf("Distributing %d blahs with %d workers...\n", N, CONC)
	writeLat := runConcurrent(N, CONC, func(i int) {
		votes := int64(i % 50)
		blah := &model.Blah{
			ID:        uuid.NewString(),
			AuthorID:  fmt.Sprintf("author_%d", i%100),
			GroupID:   groupID,
			Text:      fmt.Sprintf("blah payload %d", i),
			UpVotes:   &votes,
			CreatedAt: time.Now(),
		}
		if err := distributor.Distribute(ctx, blah, groupID); err != nil {
			panic(err)
		}
	})

	fmt.Printf("Reading inbox 0 from cache %d times with %d workers...\n", READS, CONC)
	count := 20
	readLat := runConcurrent(READS, CONC, func(i int) {
		start := i % 30
		if _, err := reader.GetInboxFromCache(ctx, groupID, 0, &start, &count, "up_votes", service.SortDescending); err != nil {
			panic(err)
		}
	})

	fmt.Printf("\n%-12s avg=%v p95=%v p99=%v\n", "distribute", avg(writeLat), pct(writeLat, 0.95), pct(writeLat, 0.99))
	fmt.Printf("%-12s avg=%v p95=%v p99=%v\n", "cached read", avg(readLat), pct(readLat, 0.95), pct(readLat, 0.99))

	st, err := cacheStore.GetInboxState(ctx, groupID, 0)
	mustDo(err)
	if st != nil {
		fmt.Printf("inbox 0 state: %d refs, top=%d\n", len(st.ItemIDs), st.TopInbox)
	}
}

func runConcurrent(n, workers int, f func(i int)) []time.Duration {
	lat := make([]time.Duration, n)
	var wg sync.WaitGroup
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				f(i)
				lat[i] = time.Since(start)
			}
		}()
	}
	wg.Wait()
	return lat
}
