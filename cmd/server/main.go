package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/blahbox/config"
	"github.com/d60-Lab/blahbox/internal/api"
	"github.com/d60-Lab/blahbox/internal/api/handler"
	"github.com/d60-Lab/blahbox/internal/cache"
	"github.com/d60-Lab/blahbox/internal/repository"
	"github.com/d60-Lab/blahbox/internal/service"
	"github.com/d60-Lab/blahbox/pkg/database"
	"github.com/d60-Lab/blahbox/pkg/logger"
	"github.com/d60-Lab/blahbox/pkg/tracing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Server.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(ctx, "blahbox", cfg.Tracing.Endpoint)
		if err != nil {
			logger.Warn("tracing init failed", zap.Error(err))
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	db := must(database.InitDB(cfg))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, cache view will lag", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	cacheStore := cache.NewStore(rdb, cfg.Inbox.ItemTTL, cfg.Inbox.StateTTL, cfg.Inbox.CASRetries)
	collections := repository.NewCollectionStore(db)
	states := repository.NewInboxStateRepository(db)
	groups := repository.NewGroupRepository(db)
	blahs := repository.NewBlahRepository(db)

	distributor := service.NewDistributor(collections, states, cacheStore, service.DistributorConfig{
		InboxMaxItems:   cfg.Inbox.MaxItems,
		InboxMaxBytes:   cfg.Inbox.MaxBytes,
		RecentsMaxItems: cfg.Inbox.RecentsMaxItems,
		RecentsMaxBytes: cfg.Inbox.RecentsMaxBytes,
	})
	reader := service.NewReader(groups, collections, cacheStore, cfg.Inbox.DefaultLimit)

	h := handler.NewHandler(blahs, distributor, reader)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(h, cfg),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
