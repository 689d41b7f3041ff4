package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kevmine/kevminex/pkg/db"
	"github.com/kevmine/kevminex/pkg/economy"
	"github.com/kevmine/kevminex/pkg/events"
	"github.com/kevmine/kevminex/pkg/ranking"
	"github.com/kevmine/kevminex/pkg/realtime"
	"github.com/kevmine/kevminex/pkg/redis"
)

type App struct {
	Store *db.Store

	// RedisClient powers the fire-and-forget event fan-out; nil when
	// Redis is disabled, in which case progress events are dropped.
	RedisClient *redis.Client

	Registry *realtime.Registry
	Economy  *economy.Service
	Events   *events.Publisher
	Ranking  *ranking.Job

	// JWTSecret verifies the session tokens issued by the auth service.
	JWTSecret []byte

	// Zap Logger
	Logger *zap.Logger
	// Server is the HTTP server handling client requests.
	Server *http.Server
}

// Start runs the server and the rank scheduler until ctx is cancelled,
// then shuts everything down in dependency order.
func (a *App) Start(ctx context.Context) {
	a.Ranking.Start()
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)
	a.Ranking.Stop()
	a.Events.Close()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
	a.Store.Close()
	a.Logger.Info("goodbye, miners")
}
