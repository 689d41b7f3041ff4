package economy

import "context"

// Store exposes the persistence operations the engine needs. The Commit*
// methods apply a fully computed state transition atomically: either every
// row lands or none does. Guarded updates (stock decrement, listing
// transfer) re-check their precondition inside the transaction and return
// ErrOutOfStock / ErrAssetNotFound when another buyer won the race.
type Store interface {
	Account(ctx context.Context, id string) (*Account, error)
	HouseAccountID(ctx context.Context) (string, error)
	SaveAccountFunds(ctx context.Context, acc *Account) error
	OwnedMiningPower(ctx context.Context, accountID string) (float64, error)

	Robot(ctx context.Context, id string) (*Robot, error)
	CommissionRate(ctx context.Context) (float64, error)

	CommitPurchase(ctx context.Context, buyer *Account, template *Robot, instance *Robot) error
	CommitTransfer(ctx context.Context, buyer *Account, listing *Robot) error
	CommitUpgrade(ctx context.Context, owner *Account, robot *Robot) error
	// CommitSale credits the house with a relative update (no house lock
	// is taken) and returns the house balance after the credit.
	CommitSale(ctx context.Context, seller *Account, houseID string, commission float64, robot *Robot) (float64, error)
}

// Recorder receives progress events and ledger journal entries. Both are
// fire-and-forget: a Recorder failure never fails the economy mutation
// that triggered it.
type Recorder interface {
	Progress(accountID, eventType string, value float64)
	Journal(accountID string, delta, balance float64, reason string)
}

// Notifier pushes a realtime event to one connected account, best-effort.
type Notifier interface {
	DeliverTo(accountID, eventType string, payload any)
}
