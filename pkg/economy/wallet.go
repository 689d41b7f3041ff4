package economy

import "context"

// settle folds pending accrual into the account's unclaimed amount. The
// accrual rate is the live sum of mining power over the robots the account
// owns right now, so selling or upgrading changes future accrual without
// rewriting what was already mined. Returns whether anything changed.
func (s *Service) settle(ctx context.Context, acc *Account) (bool, error) {
	rate, err := s.store.OwnedMiningPower(ctx, acc.ID)
	if err != nil {
		return false, err
	}
	now := s.now()
	delta, advance := Accrue(acc.LastAccrual, rate, now)
	if !advance {
		return false, nil
	}
	acc.Unclaimed += delta
	acc.LastAccrual = now
	return true, nil
}

// Status returns the account's settled and unclaimed balances, folding in
// newly mined currency first when the debounce window has elapsed.
func (s *Service) Status(ctx context.Context, accountID string) (*WalletStatus, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	acc, err := s.store.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	advanced, err := s.settle(ctx, acc)
	if err != nil {
		return nil, err
	}
	if advanced {
		if err := s.store.SaveAccountFunds(ctx, acc); err != nil {
			return nil, err
		}
	}
	return &WalletStatus{Balance: acc.Balance, Unclaimed: acc.Unclaimed}, nil
}

// Claim settles accrual one last time, then moves the whole unclaimed
// amount into the balance in a single atomic step. Fails with
// ErrNothingToClaim when there is nothing to move.
func (s *Service) Claim(ctx context.Context, accountID string) (*WalletStatus, float64, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	acc, err := s.store.Account(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.settle(ctx, acc); err != nil {
		return nil, 0, err
	}

	claimed := acc.Unclaimed
	if claimed <= 0 {
		return nil, 0, ErrNothingToClaim
	}

	newBalance, err := applyDelta(acc, claimed)
	if err != nil {
		return nil, 0, err
	}
	acc.Unclaimed = 0
	if err := s.store.SaveAccountFunds(ctx, acc); err != nil {
		return nil, 0, err
	}

	s.journal(accountID, claimed, newBalance, ReasonClaim)
	s.progress(accountID, EventClaimed, claimed)
	return &WalletStatus{Balance: newBalance, Unclaimed: 0}, claimed, nil
}
