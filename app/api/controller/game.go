package controller

import (
	"net/http"
	"strconv"
)

const defaultLeaderboardSize = 100

// HandleStatus settles pending mining income and returns the caller's wallet.
func (c *Controller) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	status, err := c.App.Economy.Status(r.Context(), id.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleClaim moves the caller's accrued income into their spendable balance.
func (c *Controller) HandleClaim(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	status, claimed, err := c.App.Economy.Claim(r.Context(), id.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claimed": claimed,
		"wallet":  status,
	})
}

// HandleLeaderboard returns the standings computed by the last rank pass.
// Supports ?top=N and ?name=substring.
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	topN := defaultLeaderboardSize
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid top parameter"})
			return
		}
		topN = n
	}

	entries, err := c.App.Store.Leaderboard(r.Context(), topN, r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (c *Controller) HandleInventory(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	robots, err := c.App.Store.Inventory(r.Context(), id.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, robots)
}
