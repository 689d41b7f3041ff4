package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kevmine/kevminex/app/api/controller"
	"github.com/kevmine/kevminex/app/api/types"
	"github.com/kevmine/kevminex/pkg/utils"
)

// NewServer builds the router and attaches the HTTP server to the app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3000")

	app.Server = &http.Server{Addr: addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
