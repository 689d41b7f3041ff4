package controller

import (
	"net/http"

	"github.com/gorilla/mux"
)

// HandleMarket lists everything currently purchasable: house templates with
// stock plus player relistings.
func (c *Controller) HandleMarket(w http.ResponseWriter, r *http.Request) {
	robots, err := c.App.Store.Market(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, robots)
}

func (c *Controller) HandleRobot(w http.ResponseWriter, r *http.Request) {
	robot, err := c.App.Store.Robot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, robot)
}

func (c *Controller) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	result, err := c.App.Economy.Purchase(r.Context(), id.AccountID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *Controller) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	result, err := c.App.Economy.Upgrade(r.Context(), id.AccountID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *Controller) HandleSell(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	result, err := c.App.Economy.Sell(r.Context(), id.AccountID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
