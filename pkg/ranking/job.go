package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kevmine/kevminex/pkg/utils"
)

// Standing is one account's position in the rank scan: its id and the
// rank it held before this recompute (0 = never ranked).
type Standing struct {
	ID   string
	Rank int
}

// Update is the new rank pair written back for one account.
type Update struct {
	ID           string
	Rank         int
	PreviousRank int
}

// Store is the persistence surface the job needs. RankedAccounts must
// return a deterministic total order: balance descending, account
// creation order (oldest first) as the tie-break.
type Store interface {
	RankedAccounts(ctx context.Context) ([]Standing, error)
	UpdateRanks(ctx context.Context, updates []Update) error
}

// Broadcaster notifies connected clients that the leaderboard moved.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// Job recomputes the leaderboard on a fixed schedule. Rank is
// informational and eventually consistent: the scan takes no per-account
// locks, and a balance changing mid-scan is corrected on the next run. A
// failed run is logged and retried on the next tick; it never touches
// request handling.
type Job struct {
	store       Store
	broadcaster Broadcaster
	logger      *zap.Logger

	cron     *cron.Cron
	cronSpec string

	// Serializes scheduled runs against manual admin triggers.
	mu sync.Mutex
}

func NewJob(store Store, broadcaster Broadcaster, logger *zap.Logger) *Job {
	return &Job{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		// Seconds field included; default is once a minute.
		cronSpec: utils.Env("RANK_CRON", "0 * * * * *"),
	}
}

// Schedule registers the periodic run. Start begins execution.
func (j *Job) Schedule(ctx context.Context) error {
	j.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := j.cron.AddFunc(j.cronSpec, func() {
		// Keep each run bounded.
		rctx, cancel := context.WithTimeout(ctx, 50*time.Second)
		defer cancel()
		if err := j.Run(rctx); err != nil {
			j.logger.Error("rank recompute failed, will retry next tick", zap.Error(err))
		}
	})
	return err
}

// Start starts the scheduler.
func (j *Job) Start() {
	j.cron.Start()
	j.logger.Info("rank scheduler started", zap.String("cronSpec", j.cronSpec))
}

// Stop stops the scheduler and waits for an in-flight run.
func (j *Job) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Run performs one full recompute: scan all non-house accounts in
// leaderboard order, assign ranks 1..N, carry the old rank into
// previousRank (first-time entrants get their new rank, so there is no
// phantom movement), and apply everything as a single bulk write.
func (j *Job) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	started := time.Now()
	accounts, err := j.store.RankedAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return nil
	}

	updates := make([]Update, len(accounts))
	for i, acc := range accounts {
		newRank := i + 1
		previous := acc.Rank
		if previous == 0 {
			previous = newRank
		}
		updates[i] = Update{ID: acc.ID, Rank: newRank, PreviousRank: previous}
	}

	if err := j.store.UpdateRanks(ctx, updates); err != nil {
		return err
	}

	j.logger.Info("ranks updated",
		zap.Int("accounts", len(updates)),
		zap.Duration("took", time.Since(started)))

	if j.broadcaster != nil {
		j.broadcaster.Broadcast("leaderboard_updated", map[string]any{
			"accounts": len(updates),
		})
	}
	return nil
}
