package http

import (
	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/internal/infrastructure/http/server"
)

// Module wires the auth handler and mounts its routes.
var Module = fx.Module("auth_http",
	fx.Provide(
		NewAuthHandler,
		NewRouter,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(srv *server.Server, router *Router) {
	router.RegisterRoutes(srv.Router)
}
