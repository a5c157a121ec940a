package http

import (
	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/internal/infrastructure/http/server"
)

// Module wires the batch handler and mounts its routes.
var Module = fx.Module("batch_http",
	fx.Provide(
		NewBatchHandler,
		NewRouter,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(srv *server.Server, router *Router) {
	router.RegisterRoutes(srv.Router)
}
