package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/kevmine/kevminex/pkg/economy"
)

type bonusRequest struct {
	AccountID string  `json:"accountId"`
	Amount    float64 `json:"amount"`
	Reason    string  `json:"reason"`
}

type settingsPayload struct {
	SalesCommissionRate float64 `json:"salesCommissionRate"`
}

// HandleGrantBonus credits an account out of thin air. Admin only.
func (c *Controller) HandleGrantBonus(w http.ResponseWriter, r *http.Request) {
	var req bonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = economy.ReasonAdminBonus
	}
	balance, err := c.App.Economy.GrantBonus(r.Context(), req.AccountID, req.Amount, reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accountId": req.AccountID, "balance": balance})
}

func (c *Controller) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	rate, err := c.App.Store.CommissionRate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload{SalesCommissionRate: rate})
}

// validCommissionRate bounds the rate to [0, 1]. A full 1.0 commission is
// allowed: sellerReturn = floor(1.4*invested) - floor(invested) stays >= 0.
func validCommissionRate(rate float64) bool {
	return rate >= 0 && rate <= 1
}

func (c *Controller) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validCommissionRate(req.SalesCommissionRate) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "commission rate must be in [0, 1]"})
		return
	}

	if err := c.App.Store.SetCommissionRate(r.Context(), req.SalesCommissionRate); err != nil {
		writeError(w, err)
		return
	}

	// Connected clients pick up the new rate without a refresh.
	c.App.Registry.Broadcast("settings_updated", req)
	writeJSON(w, http.StatusOK, req)
}

// HandleRankRecompute runs a leaderboard pass immediately instead of waiting
// for the next cron tick.
func (c *Controller) HandleRankRecompute(w http.ResponseWriter, r *http.Request) {
	if err := c.App.Ranking.Run(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.App.Store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
