package economy

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResaleMarkup fixes a listing price at 140% of the capital invested in
// the robot, so any commission rate below 0.40 leaves the seller in profit.
const ResaleMarkup = 1.4

// Purchase buys a robot. A catalog template is cloned into a new owned
// instance and its stock decremented; a player listing transfers the same
// record to the buyer. The debit and the asset transition commit together.
func (s *Service) Purchase(ctx context.Context, accountID, robotID string) (*TradeResult, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	buyer, err := s.store.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	robot, err := s.store.Robot(ctx, robotID)
	if err != nil {
		return nil, err
	}
	if robot.Owned() {
		// Someone else's robot, not for sale.
		return nil, ErrAssetNotFound
	}
	if robot.Stock <= 0 {
		return nil, ErrOutOfStock
	}

	price := robot.Price
	newBalance, err := applyDelta(buyer, -price)
	if err != nil {
		return nil, err
	}

	var bought *Robot
	if robot.PlayerListed {
		robot.Owner = accountID
		robot.PlayerListed = false
		robot.Stock = 0
		robot.Invested = price
		if err := s.store.CommitTransfer(ctx, buyer, robot); err != nil {
			return nil, err
		}
		bought = robot
	} else {
		instance := &Robot{
			ID:            uuid.NewString(),
			TemplateID:    robot.ID,
			Name:          robot.Name,
			Icon:          robot.Icon,
			Rarity:        robot.Rarity,
			Price:         price,
			MiningPower:   robot.MiningPower,
			Level:         1,
			UpgradeCost:   robot.UpgradeCost,
			LevelUpFactor: robot.LevelUpFactor,
			Stock:         0,
			Invested:      price,
			Owner:         accountID,
		}
		robot.Stock--
		if err := s.store.CommitPurchase(ctx, buyer, robot, instance); err != nil {
			return nil, err
		}
		bought = instance
	}

	s.journal(accountID, -price, newBalance, ReasonPurchaseDebit)
	s.progress(accountID, EventRobotPurchased, 1)
	s.logger.Debug("robot purchased",
		zap.String("account", accountID),
		zap.String("robot", bought.ID),
		zap.Float64("price", price))
	return &TradeResult{Balance: newBalance, Robot: bought}, nil
}

// Upgrade raises an owned robot one level. The debit is validated before
// any field changes; power and cost scale by the robot's level-up factor.
func (s *Service) Upgrade(ctx context.Context, accountID, robotID string) (*TradeResult, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	owner, err := s.store.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	robot, err := s.store.Robot(ctx, robotID)
	if err != nil {
		return nil, err
	}
	if robot.Owner != accountID {
		return nil, ErrNotOwner
	}

	cost := robot.UpgradeCost
	newBalance, err := applyDelta(owner, -cost)
	if err != nil {
		return nil, err
	}

	robot.Level++
	robot.MiningPower = round2(robot.MiningPower * robot.LevelUpFactor)
	robot.UpgradeCost = math.Floor(robot.UpgradeCost * robot.LevelUpFactor)
	robot.Invested += cost

	if err := s.store.CommitUpgrade(ctx, owner, robot); err != nil {
		return nil, err
	}

	s.journal(accountID, -cost, newBalance, ReasonUpgradeDebit)
	s.progress(accountID, EventRobotUpgraded, 1)
	return &TradeResult{Balance: newBalance, Robot: robot}, nil
}

// Sell relists an owned robot on the player market. The seller receives
// the sale price minus commission, the house account receives the
// commission, and the robot returns to the unowned pool keeping its level
// and mining power. A missing house account is an operator error: resale
// is impossible until it is fixed.
func (s *Service) Sell(ctx context.Context, accountID, robotID string) (*TradeResult, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	seller, err := s.store.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	robot, err := s.store.Robot(ctx, robotID)
	if err != nil {
		return nil, err
	}
	if robot.Owner != accountID {
		return nil, ErrNotOwner
	}

	houseID, err := s.store.HouseAccountID(ctx)
	if err != nil {
		s.logger.Error("sell rejected: no house account configured, resale is blocked",
			zap.String("account", accountID), zap.Error(err))
		return nil, err
	}
	rate, err := s.store.CommissionRate(ctx)
	if err != nil {
		return nil, err
	}

	invested := robot.Invested
	salePrice := math.Floor(invested * ResaleMarkup)
	commission := math.Floor(invested * rate)
	sellerReturn := salePrice - commission

	newBalance, err := applyDelta(seller, sellerReturn)
	if err != nil {
		return nil, err
	}

	robot.Owner = ""
	robot.PlayerListed = true
	robot.Stock = 1
	robot.Price = salePrice
	robot.Invested = 0

	houseBalance, err := s.store.CommitSale(ctx, seller, houseID, commission, robot)
	if err != nil {
		return nil, err
	}

	s.journal(accountID, sellerReturn, newBalance, ReasonSaleCredit)
	s.journal(houseID, commission, houseBalance, ReasonCommission)
	s.progress(accountID, EventRobotSold, 1)
	s.logger.Debug("robot listed for resale",
		zap.String("account", accountID),
		zap.String("robot", robot.ID),
		zap.Float64("salePrice", salePrice),
		zap.Float64("commission", commission))
	return &TradeResult{Balance: newBalance, Robot: robot}, nil
}
