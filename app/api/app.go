package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/kevmine/kevminex/app/api/types"
	"github.com/kevmine/kevminex/pkg/db"
	"github.com/kevmine/kevminex/pkg/economy"
	"github.com/kevmine/kevminex/pkg/events"
	"github.com/kevmine/kevminex/pkg/logging"
	"github.com/kevmine/kevminex/pkg/ranking"
	"github.com/kevmine/kevminex/pkg/realtime"
	"github.com/kevmine/kevminex/pkg/redis"
	"github.com/kevmine/kevminex/pkg/utils"
)

// Initialize wires the application together.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	store, storeErr := db.NewStore(ctx, logger)
	if storeErr != nil {
		logger.Fatal("Unable to initialize database", zap.Error(storeErr))
	}
	if err := store.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize database schema", zap.Error(err))
	}

	// Redis is optional: without it the progress events and the ledger
	// journal are dropped, the economy itself is unaffected.
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - progress events will be dropped",
				zap.Error(err))
			redisClient = nil
		}
	} else {
		logger.Info("Redis disabled - progress events will be dropped")
	}

	registry := realtime.NewRegistry(logger)
	publisher := events.NewPublisher(redisClient, logger)
	engine := economy.NewService(store, publisher, registry, logger)

	job := ranking.NewJob(store, registry, logger)
	if err := job.Schedule(ctx); err != nil {
		logger.Fatal("Unable to schedule rank recompute", zap.Error(err))
	}

	secret := utils.Env("JWT_SECRET", "")
	if secret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	return &types.App{
		Store:       store,
		RedisClient: redisClient,
		Registry:    registry,
		Economy:     engine,
		Events:      publisher,
		Ranking:     job,
		JWTSecret:   []byte(secret),
		Logger:      logger,
	}
}
