package controller

import (
	"errors"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	"github.com/kevmine/kevminex/app/api/types"
	"github.com/kevmine/kevminex/pkg/economy"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")
	r.HandleFunc("/game/leaderboard", c.HandleLeaderboard).Methods("GET")
	r.HandleFunc("/robots", c.HandleMarket).Methods("GET")
	r.HandleFunc("/robots/{id}", c.HandleRobot).Methods("GET")

	player := r.NewRoute().Subrouter()
	player.Use(c.RequireAuth)
	player.HandleFunc("/game/status", c.HandleStatus).Methods("GET")
	player.HandleFunc("/game/claim", c.HandleClaim).Methods("POST")
	player.HandleFunc("/game/inventory", c.HandleInventory).Methods("GET")
	player.HandleFunc("/robots/{id}/purchase", c.HandlePurchase).Methods("POST")
	player.HandleFunc("/robots/{id}/upgrade", c.HandleUpgrade).Methods("PUT")
	player.HandleFunc("/robots/{id}/sell", c.HandleSell).Methods("POST")
	player.HandleFunc("/ws", c.HandleWebSocket).Methods("GET")

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(c.RequireAdmin)
	admin.HandleFunc("/bonus", c.HandleGrantBonus).Methods("POST")
	admin.HandleFunc("/settings", c.HandleGetSettings).Methods("GET")
	admin.HandleFunc("/settings", c.HandleUpdateSettings).Methods("PUT")
	admin.HandleFunc("/ranks/recompute", c.HandleRankRecompute).Methods("POST")
	admin.HandleFunc("/stats", c.HandleStats).Methods("GET")

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the economy error taxonomy to HTTP statuses. Anything
// unrecognized is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, economy.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, economy.ErrOutOfStock),
		errors.Is(err, economy.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, economy.ErrAssetNotFound),
		errors.Is(err, economy.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, economy.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, economy.ErrNothingToClaim),
		errors.Is(err, economy.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
