package economy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory Store with the same guarded-update semantics as
// the SQL implementation, so race tests exercise the real preconditions.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	robots   map[string]*Robot
	houseID  string
	rate     float64
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*Account),
		robots:   make(map[string]*Robot),
		rate:     0.10,
	}
}

func (m *memStore) addAccount(acc *Account) {
	cp := *acc
	m.accounts[acc.ID] = &cp
	if acc.IsHouse {
		m.houseID = acc.ID
	}
}

func (m *memStore) addRobot(r *Robot) {
	cp := *r
	m.robots[r.ID] = &cp
}

func (m *memStore) Account(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *memStore) HouseAccountID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.houseID == "" {
		return "", ErrConfigurationMissing
	}
	return m.houseID, nil
}

func (m *memStore) SaveAccountFunds(_ context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveFundsLocked(acc)
}

func (m *memStore) saveFundsLocked(acc *Account) error {
	stored, ok := m.accounts[acc.ID]
	if !ok {
		return ErrAccountNotFound
	}
	stored.Balance = acc.Balance
	stored.Unclaimed = acc.Unclaimed
	stored.LastAccrual = acc.LastAccrual
	return nil
}

func (m *memStore) OwnedMiningPower(_ context.Context, accountID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, r := range m.robots {
		if r.Owner == accountID {
			total += r.MiningPower
		}
	}
	return total, nil
}

func (m *memStore) Robot(_ context.Context, id string) (*Robot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.robots[id]
	if !ok {
		return nil, ErrAssetNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) CommissionRate(context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate, nil
}

func (m *memStore) CommitPurchase(_ context.Context, buyer *Account, template, instance *Robot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.robots[template.ID]
	if !ok || stored.Owner != "" || stored.Stock <= 0 {
		return ErrOutOfStock
	}
	if err := m.saveFundsLocked(buyer); err != nil {
		return err
	}
	stored.Stock--
	cp := *instance
	m.robots[instance.ID] = &cp
	return nil
}

func (m *memStore) CommitTransfer(_ context.Context, buyer *Account, listing *Robot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.robots[listing.ID]
	if !ok || stored.Owner != "" || !stored.PlayerListed || stored.Stock != 1 {
		return ErrOutOfStock
	}
	if err := m.saveFundsLocked(buyer); err != nil {
		return err
	}
	*stored = *listing
	return nil
}

func (m *memStore) CommitUpgrade(_ context.Context, owner *Account, robot *Robot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.robots[robot.ID]
	if !ok || stored.Owner != owner.ID {
		return ErrConcurrencyConflict
	}
	if err := m.saveFundsLocked(owner); err != nil {
		return err
	}
	*stored = *robot
	return nil
}

func (m *memStore) CommitSale(_ context.Context, seller *Account, houseID string, commission float64, robot *Robot) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.robots[robot.ID]
	if !ok || stored.Owner != seller.ID {
		return 0, ErrConcurrencyConflict
	}
	if err := m.saveFundsLocked(seller); err != nil {
		return 0, err
	}
	*stored = *robot
	house, ok := m.accounts[houseID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	house.Balance += commission
	return house.Balance, nil
}

// totalCurrency sums every balance and unclaimed amount in the store.
func (m *memStore) totalCurrency() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, acc := range m.accounts {
		total += acc.Balance + acc.Unclaimed
	}
	return total
}

type journalEntry struct {
	accountID string
	delta     float64
	balance   float64
	reason    string
}

type spyRecorder struct {
	mu       sync.Mutex
	journal  []journalEntry
	progress []string
}

func (r *spyRecorder) Journal(accountID string, delta, balance float64, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = append(r.journal, journalEntry{accountID, delta, balance, reason})
}

func (r *spyRecorder) Progress(_, eventType string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, eventType)
}

type spyNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *spyNotifier) DeliverTo(_, eventType string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func newTestService(store *memStore) (*Service, *spyRecorder, *spyNotifier) {
	recorder := &spyRecorder{}
	notifier := &spyNotifier{}
	svc := NewService(store, recorder, notifier, zap.NewNop())
	return svc, recorder, notifier
}

func TestAccrue(t *testing.T) {
	now := time.Now()

	delta, advance := Accrue(now.Add(-1000*time.Second), 36, now)
	assert.True(t, advance)
	assert.InDelta(t, 10.0, delta, 1e-9)

	// Inside the debounce window nothing accrues and the clock stays put.
	_, advance = Accrue(now.Add(-5*time.Second), 36, now)
	assert.False(t, advance)

	// A clock that went backwards must not mint currency.
	_, advance = Accrue(now.Add(time.Minute), 36, now)
	assert.False(t, advance)

	// Zero mining power still advances the accrual point.
	delta, advance = Accrue(now.Add(-time.Hour), 0, now)
	assert.True(t, advance)
	assert.Zero(t, delta)
}

func TestStatusSettlesAccrual(t *testing.T) {
	store := newMemStore()
	start := time.Now()
	store.addAccount(&Account{ID: "p1", Balance: 100, LastAccrual: start})
	store.addRobot(&Robot{ID: "r1", Owner: "p1", MiningPower: 36})

	svc, _, _ := newTestService(store)
	svc.now = func() time.Time { return start.Add(1000 * time.Second) }

	status, err := svc.Status(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, status.Balance)
	assert.InDelta(t, 10.0, status.Unclaimed, 1e-9)

	// Settled state is persisted, not recomputed from scratch next time.
	stored, err := store.Account(context.Background(), "p1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, stored.Unclaimed, 1e-9)
	assert.Equal(t, start.Add(1000*time.Second), stored.LastAccrual)
}

func TestSettleUsesOneInstant(t *testing.T) {
	store := newMemStore()
	start := time.Now()
	store.addAccount(&Account{ID: "p1", LastAccrual: start})
	store.addRobot(&Robot{ID: "r1", Owner: "p1", MiningPower: 3600})

	svc, _, _ := newTestService(store)

	// The clock advances on every read. The delta and the new accrual
	// point must come from the same read, or the time between two reads
	// is silently never paid out.
	reads := 0
	svc.now = func() time.Time {
		reads++
		return start.Add(time.Duration(100+3*(reads-1)) * time.Second)
	}

	status, err := svc.Status(context.Background(), "p1")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, status.Unclaimed, 1e-9)

	stored, err := store.Account(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, start.Add(100*time.Second), stored.LastAccrual)
}

func TestStatusDebounce(t *testing.T) {
	store := newMemStore()
	start := time.Now()
	store.addAccount(&Account{ID: "p1", Unclaimed: 3, LastAccrual: start})
	store.addRobot(&Robot{ID: "r1", Owner: "p1", MiningPower: 3600})

	svc, _, _ := newTestService(store)
	svc.now = func() time.Time { return start.Add(5 * time.Second) }

	status, err := svc.Status(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, status.Unclaimed)

	stored, err := store.Account(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, start, stored.LastAccrual)
}

func TestClaim(t *testing.T) {
	store := newMemStore()
	start := time.Now()
	store.addAccount(&Account{ID: "p1", Balance: 50, Unclaimed: 7, LastAccrual: start})

	svc, recorder, _ := newTestService(store)
	svc.now = func() time.Time { return start.Add(5 * time.Second) }

	status, claimed, err := svc.Claim(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, claimed)
	assert.Equal(t, 57.0, status.Balance)
	assert.Zero(t, status.Unclaimed)

	require.Len(t, recorder.journal, 1)
	assert.Equal(t, ReasonClaim, recorder.journal[0].reason)
	assert.Equal(t, []string{EventClaimed}, recorder.progress)

	// Nothing left to claim.
	_, _, err = svc.Claim(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaimSettlesFirst(t *testing.T) {
	store := newMemStore()
	start := time.Now()
	store.addAccount(&Account{ID: "p1", LastAccrual: start})
	store.addRobot(&Robot{ID: "r1", Owner: "p1", MiningPower: 36})

	svc, _, _ := newTestService(store)
	svc.now = func() time.Time { return start.Add(1000 * time.Second) }

	_, claimed, err := svc.Claim(context.Background(), "p1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, claimed, 1e-9)
}

func TestConcurrentClaimsMintOnce(t *testing.T) {
	store := newMemStore()
	start := time.Now()
	store.addAccount(&Account{ID: "p1", Balance: 100, Unclaimed: 25, LastAccrual: start})

	svc, _, _ := newTestService(store)
	svc.now = func() time.Time { return start.Add(5 * time.Second) }

	const goroutines = 16
	var wg sync.WaitGroup
	var succeeded sync.Map
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, claimed, err := svc.Claim(context.Background(), "p1"); err == nil {
				succeeded.Store(i, claimed)
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	succeeded.Range(func(_, v any) bool {
		wins++
		assert.Equal(t, 25.0, v)
		return true
	})
	assert.Equal(t, 1, wins)

	acc, err := store.Account(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 125.0, acc.Balance)
	assert.Zero(t, acc.Unclaimed)
}

func TestPurchaseTemplate(t *testing.T) {
	store := newMemStore()
	store.addAccount(&Account{ID: "p1", Balance: 500, LastAccrual: time.Now()})
	store.addRobot(&Robot{
		ID: "tpl", Name: "Digger", Price: 100, MiningPower: 36,
		UpgradeCost: 100, LevelUpFactor: 1.5, Stock: 2,
	})

	svc, recorder, _ := newTestService(store)

	result, err := svc.Purchase(context.Background(), "p1", "tpl")
	require.NoError(t, err)
	assert.Equal(t, 400.0, result.Balance)
	assert.NotEqual(t, "tpl", result.Robot.ID)
	assert.Equal(t, "tpl", result.Robot.TemplateID)
	assert.Equal(t, "p1", result.Robot.Owner)
	assert.Equal(t, 1, result.Robot.Level)
	assert.Equal(t, 100.0, result.Robot.Invested)

	tpl, err := store.Robot(context.Background(), "tpl")
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Stock)
	assert.Empty(t, tpl.Owner)

	require.Len(t, recorder.journal, 1)
	assert.Equal(t, ReasonPurchaseDebit, recorder.journal[0].reason)
	assert.Equal(t, -100.0, recorder.journal[0].delta)
}

func TestPurchaseErrors(t *testing.T) {
	store := newMemStore()
	store.addAccount(&Account{ID: "poor", Balance: 10, LastAccrual: time.Now()})
	store.addAccount(&Account{ID: "rich", Balance: 1000, LastAccrual: time.Now()})
	store.addRobot(&Robot{ID: "tpl", Price: 100, Stock: 1})
	store.addRobot(&Robot{ID: "empty", Price: 100, Stock: 0})
	store.addRobot(&Robot{ID: "owned", Price: 100, Owner: "rich"})

	svc, _, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.Purchase(ctx, "poor", "tpl")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = svc.Purchase(ctx, "rich", "empty")
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = svc.Purchase(ctx, "rich", "owned")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = svc.Purchase(ctx, "rich", "missing")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	// Failed purchases must not leak a debit.
	acc, err := store.Account(ctx, "poor")
	require.NoError(t, err)
	assert.Equal(t, 10.0, acc.Balance)
}

func TestConcurrentPurchaseLastUnit(t *testing.T) {
	store := newMemStore()
	store.addAccount(&Account{ID: "a", Balance: 1000, LastAccrual: time.Now()})
	store.addAccount(&Account{ID: "b", Balance: 1000, LastAccrual: time.Now()})
	store.addRobot(&Robot{ID: "tpl", Price: 100, Stock: 1})

	svc, _, _ := newTestService(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, buyer := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, buyer string) {
			defer wg.Done()
			_, errs[i] = svc.Purchase(ctx, buyer, "tpl")
		}(i, buyer)
	}
	wg.Wait()

	// Exactly one buyer gets the unit; the loser keeps their money.
	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], ErrOutOfStock)
	} else {
		assert.ErrorIs(t, errs[0], ErrOutOfStock)
		require.NoError(t, errs[1])
	}

	a, _ := store.Account(ctx, "a")
	b, _ := store.Account(ctx, "b")
	assert.Equal(t, 1900.0, a.Balance+b.Balance)
}

func TestUpgrade(t *testing.T) {
	store := newMemStore()
	store.addAccount(&Account{ID: "p1", Balance: 250, LastAccrual: time.Now()})
	store.addRobot(&Robot{
		ID: "r1", Owner: "p1", MiningPower: 36, Level: 1,
		UpgradeCost: 100, LevelUpFactor: 1.5, Invested: 100,
	})

	svc, recorder, _ := newTestService(store)

	result, err := svc.Upgrade(context.Background(), "p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, 150.0, result.Balance)
	assert.Equal(t, 2, result.Robot.Level)
	assert.Equal(t, 54.0, result.Robot.MiningPower)
	assert.Equal(t, 150.0, result.Robot.UpgradeCost)
	assert.Equal(t, 200.0, result.Robot.Invested)

	require.Len(t, recorder.journal, 1)
	assert.Equal(t, ReasonUpgradeDebit, recorder.journal[0].reason)

	// Second upgrade costs 150, balance exactly covers it.
	result, err = svc.Upgrade(context.Background(), "p1", "r1")
	require.NoError(t, err)
	assert.Zero(t, result.Balance)
	assert.Equal(t, 3, result.Robot.Level)
	assert.Equal(t, 81.0, result.Robot.MiningPower)

	// Third upgrade fails: no funds, robot untouched.
	_, err = svc.Upgrade(context.Background(), "p1", "r1")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	r, _ := store.Robot(context.Background(), "r1")
	assert.Equal(t, 3, r.Level)
}

func TestUpgradeNotOwner(t *testing.T) {
	store := newMemStore()
	store.addAccount(&Account{ID: "p1", Balance: 500, LastAccrual: time.Now()})
	store.addRobot(&Robot{ID: "r1", Owner: "someone-else", UpgradeCost: 10})

	svc, _, _ := newTestService(store)
	_, err := svc.Upgrade(context.Background(), "p1", "r1")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestSell(t *testing.T) {
	store := newMemStore()
	store.addAccount(&Account{ID: "p1", Balance: 300, LastAccrual: time.Now()})
	store.addAccount(&Account{ID: "house", IsHouse: true})
	store.addRobot(&Robot{
		ID: "r1", Owner: "p1", MiningPower: 54, Level: 2, Invested: 200,
	})

	svc, recorder, _ := newTestService(store)

	result, err := svc.Sell(context.Background(), "p1", "r1")
	require.NoError(t, err)
	// invested 200 * 1.4 markup = 280, commission 200 * 0.1 = 20
	assert.Equal(t, 560.0, result.Balance)
	assert.Empty(t, result.Robot.Owner)
	assert.True(t, result.Robot.PlayerListed)
	assert.Equal(t, 1, result.Robot.Stock)
	assert.Equal(t, 280.0, result.Robot.Price)
	assert.Zero(t, result.Robot.Invested)
	// Level and power survive the relist.
	assert.Equal(t, 2, result.Robot.Level)
	assert.Equal(t, 54.0, result.Robot.MiningPower)

	house, err := store.Account(context.Background(), "house")
	require.NoError(t, err)
	assert.Equal(t, 20.0, house.Balance)

	require.Len(t, recorder.journal, 2)
	assert.Equal(t, ReasonSaleCredit, recorder.journal[0].reason)
	assert.Equal(t, 260.0, recorder.journal[0].delta)
	assert.Equal(t, ReasonCommission, recorder.journal[1].reason)
	assert.Equal(t, 20.0, recorder.journal[1].delta)
	assert.Equal(t, 20.0, recorder.journal[1].balance)
}

func TestSellWithoutHouseAccount(t *testing.T) {
	store := newMemStore()
	store.addAccount(&Account{ID: "p1", Balance: 300, LastAccrual: time.Now()})
	store.addRobot(&Robot{ID: "r1", Owner: "p1", Invested: 200})

	svc, _, _ := newTestService(store)
	_, err := svc.Sell(context.Background(), "p1", "r1")
	assert.ErrorIs(t, err, ErrConfigurationMissing)
}

func TestGrantBonus(t *testing.T) {
	store := newMemStore()
	store.addAccount(&Account{ID: "p1", Balance: 10, LastAccrual: time.Now()})

	svc, recorder, notifier := newTestService(store)

	balance, err := svc.GrantBonus(context.Background(), "p1", 90, "event reward")
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)
	assert.Equal(t, []string{"bonus_granted"}, notifier.events)
	require.Len(t, recorder.journal, 1)
	assert.Equal(t, ReasonAdminBonus, recorder.journal[0].reason)

	_, err = svc.GrantBonus(context.Background(), "p1", 0, "zero")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.GrantBonus(context.Background(), "p1", -5, "negative")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// Full lifecycle: buy from catalog, upgrade, resell, buy the listing.
// Catalog purchases and upgrades sink currency, the sale payout mints it,
// and no balance ever goes negative.
func TestMarketplaceLifecycle(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	store.addAccount(&Account{ID: "seller", Balance: 500, LastAccrual: now})
	store.addAccount(&Account{ID: "buyer", Balance: 500, LastAccrual: now})
	store.addAccount(&Account{ID: "house", IsHouse: true})
	store.addRobot(&Robot{
		ID: "tpl", Name: "Digger", Price: 100, MiningPower: 36,
		UpgradeCost: 100, LevelUpFactor: 1.5, Stock: 5,
	})

	svc, _, _ := newTestService(store)
	ctx := context.Background()

	// Empty inventory, nothing mined yet.
	_, _, err := svc.Claim(ctx, "seller")
	assert.ErrorIs(t, err, ErrNothingToClaim)

	bought, err := svc.Purchase(ctx, "seller", "tpl")
	require.NoError(t, err)
	assert.Equal(t, 400.0, bought.Balance)

	upgraded, err := svc.Upgrade(ctx, "seller", bought.Robot.ID)
	require.NoError(t, err)
	assert.Equal(t, 300.0, upgraded.Balance)
	assert.Equal(t, 200.0, upgraded.Robot.Invested)

	sold, err := svc.Sell(ctx, "seller", upgraded.Robot.ID)
	require.NoError(t, err)
	assert.Equal(t, 560.0, sold.Balance)
	assert.Equal(t, 280.0, sold.Robot.Price)

	resold, err := svc.Purchase(ctx, "buyer", sold.Robot.ID)
	require.NoError(t, err)
	assert.Equal(t, 220.0, resold.Balance)
	assert.Equal(t, "buyer", resold.Robot.Owner)
	assert.Equal(t, 2, resold.Robot.Level)
	assert.Equal(t, 280.0, resold.Robot.Invested)

	// 500 + 500 start, purchases move money around, the house keeps 20.
	assert.Equal(t, 800.0, store.totalCurrency())
	house, _ := store.Account(ctx, "house")
	assert.Equal(t, 20.0, house.Balance)
	for _, id := range []string{"seller", "buyer", "house"} {
		acc, _ := store.Account(ctx, id)
		assert.GreaterOrEqual(t, acc.Balance, 0.0)
	}
}
