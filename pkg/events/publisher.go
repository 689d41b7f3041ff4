package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/kevmine/kevminex/pkg/redis"
)

const (
	// ProgressChannel carries (account, eventType, value) tuples consumed
	// by the external quest and achievement services.
	ProgressChannel = "kevmine:progress"
	// JournalStream is the capped audit trail of every balance mutation.
	JournalStream = "kevmine:ledger"

	publishTimeout = 3 * time.Second
)

// Publisher fans out progress events and ledger journal entries through a
// bounded worker pool, so a slow or absent Redis never blocks the ledger
// commit that produced the event. With no Redis client configured every
// call is a no-op.
type Publisher struct {
	redis  *redis.Client
	pool   pond.Pool
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		pool:   pond.NewPool(4, pond.WithQueueSize(1024), pond.WithNonBlocking(true)),
		logger: logger,
	}
}

// Progress reports a quest/achievement progress event, fire-and-forget.
func (p *Publisher) Progress(accountID, eventType string, value float64) {
	if p.redis == nil {
		return
	}
	p.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		payload, err := json.Marshal(map[string]any{
			"accountId": accountID,
			"eventType": eventType,
			"value":     value,
			"at":        time.Now().UTC(),
		})
		if err != nil {
			p.logger.Warn("failed to encode progress event", zap.Error(err))
			return
		}
		p.redis.Publish(ctx, ProgressChannel, payload)
	})
}

// Journal appends a balance mutation to the audit stream, fire-and-forget.
func (p *Publisher) Journal(accountID string, delta, balance float64, reason string) {
	if p.redis == nil {
		return
	}
	p.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		p.redis.XAdd(ctx, JournalStream, map[string]interface{}{
			"account": accountID,
			"delta":   delta,
			"balance": balance,
			"reason":  reason,
		})
	})
}

// Close drains the pool. Call on shutdown.
func (p *Publisher) Close() {
	p.pool.StopAndWait()
}
