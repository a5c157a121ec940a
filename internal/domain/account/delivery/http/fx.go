package http

import (
	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/internal/domain/account"
	"github.com/Conte777/TgFleet/internal/infrastructure/http/server"
)

// Module wires the account and health handlers and mounts their routes.
var Module = fx.Module("account_http",
	fx.Provide(
		NewAccountHandler,
		NewHealthHandler,
		NewRouter,
		func(p *account.Pool) FleetHealthChecker { return p },
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(srv *server.Server, router *Router) {
	router.RegisterRoutes(srv.Router)
}
