package economy

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Balance mutation reasons recorded in the ledger journal.
const (
	ReasonClaim          = "claim"
	ReasonPurchaseDebit  = "purchase_debit"
	ReasonUpgradeDebit   = "upgrade_debit"
	ReasonSaleCredit     = "sale_credit"
	ReasonCommission     = "commission_credit"
	ReasonAdminBonus     = "admin_bonus"
)

// Service is the economy engine: accrual, claiming, the marketplace and
// admin grants. Every balance mutation funnels through applyDelta under a
// per-account lock, so the balance >= 0 invariant is checked in one place
// and two operations on the same account never interleave their
// read-modify-write. Operations on different accounts share nothing.
type Service struct {
	store    Store
	recorder Recorder
	notifier Notifier
	locks    *xsync.Map[string, *sync.Mutex]
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store Store, recorder Recorder, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		recorder: recorder,
		notifier: notifier,
		locks:    xsync.NewMap[string, *sync.Mutex](),
		logger:   logger,
		now:      time.Now,
	}
}

// lockAccount acquires the exclusive lock for one account and returns the
// release func. Locks are created on first use and kept for the process
// lifetime; they are tiny and the population is bounded by the player base.
func (s *Service) lockAccount(id string) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// applyDelta validates and applies a balance change to a loaded account.
// It only mutates the in-memory copy; the caller persists it.
func applyDelta(acc *Account, delta float64) (float64, error) {
	if delta < 0 && acc.Balance+delta < 0 {
		return acc.Balance, ErrInsufficientFunds
	}
	acc.Balance += delta
	return acc.Balance, nil
}

// ApplyDelta atomically applies a balance change to an account and
// persists it. It is the entry point for mutations that touch nothing but
// the balance (admin bonuses); marketplace operations run the same
// validation inline so the debit and the asset transition commit together.
func (s *Service) ApplyDelta(ctx context.Context, accountID string, delta float64, reason string) (float64, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	acc, err := s.store.Account(ctx, accountID)
	if err != nil {
		return 0, err
	}
	newBalance, err := applyDelta(acc, delta)
	if err != nil {
		return 0, err
	}
	if err := s.store.SaveAccountFunds(ctx, acc); err != nil {
		return 0, err
	}
	s.journal(accountID, delta, newBalance, reason)
	return newBalance, nil
}

// GrantBonus credits an admin bonus and notifies the recipient in realtime.
func (s *Service) GrantBonus(ctx context.Context, accountID string, amount float64, reason string) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.ApplyDelta(ctx, accountID, amount, ReasonAdminBonus)
	if err != nil {
		return 0, err
	}
	s.logger.Info("bonus granted",
		zap.String("account", accountID),
		zap.Float64("amount", amount),
		zap.String("reason", reason))
	s.deliver(accountID, "bonus_granted", map[string]any{
		"amount":  amount,
		"reason":  reason,
		"balance": newBalance,
	})
	return newBalance, nil
}

func (s *Service) journal(accountID string, delta, balance float64, reason string) {
	if s.recorder != nil {
		s.recorder.Journal(accountID, delta, balance, reason)
	}
}

func (s *Service) progress(accountID, eventType string, value float64) {
	if s.recorder != nil {
		s.recorder.Progress(accountID, eventType, value)
	}
}

func (s *Service) deliver(accountID, eventType string, payload any) {
	if s.notifier != nil {
		s.notifier.DeliverTo(accountID, eventType, payload)
	}
}
