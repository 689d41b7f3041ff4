package economy

import "time"

// Account is a player wallet. Balance holds settled currency, Unclaimed
// holds mined currency that has not been claimed yet. Both are always >= 0.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Balance      float64   `json:"balance"`
	Unclaimed    float64   `json:"unclaimed"`
	LastAccrual  time.Time `json:"lastAccrual"`
	Rank         int       `json:"rank"`
	PreviousRank int       `json:"previousRank"`
	IsHouse      bool      `json:"isHouse"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Robot is a mining asset. The same record moves through three states:
// catalog template (no owner, stock > 0), owned instance (owner set,
// stock 0), and player listing (no owner, PlayerListed, stock 1).
type Robot struct {
	ID            string    `json:"id"`
	TemplateID    string    `json:"templateId,omitempty"`
	Name          string    `json:"name"`
	Icon          string    `json:"icon"`
	Rarity        string    `json:"rarity"`
	Price         float64   `json:"price"`
	MiningPower   float64   `json:"miningPower"`
	Level         int       `json:"level"`
	UpgradeCost   float64   `json:"upgradeCost"`
	LevelUpFactor float64   `json:"levelUpFactor"`
	Stock         int       `json:"stock"`
	PlayerListed  bool      `json:"playerListed"`
	Invested      float64   `json:"invested"`
	Owner         string    `json:"owner,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Owned reports whether the robot currently belongs to a player.
func (r *Robot) Owned() bool { return r.Owner != "" }

// Purchasable reports whether the robot can be bought right now, either
// from the catalog or from another player's listing.
func (r *Robot) Purchasable() bool {
	return !r.Owned() && r.Stock > 0
}

// WalletStatus is returned by status and claim operations.
type WalletStatus struct {
	Balance   float64 `json:"balance"`
	Unclaimed float64 `json:"unclaimed"`
}

// TradeResult is returned by purchase, upgrade and sell operations.
type TradeResult struct {
	Balance float64 `json:"balance"`
	Robot   *Robot  `json:"robot"`
}

// Progress event types consumed by the external quest/achievement services.
const (
	EventRobotPurchased = "ROBOT_PURCHASED"
	EventRobotUpgraded  = "ROBOT_UPGRADED"
	EventRobotSold      = "ROBOT_SOLD"
	EventClaimed        = "KVM_CLAIMED"
)
