package http

import (
	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/internal/infrastructure/http/server"
)

// Module wires the schedule handler and mounts its routes.
var Module = fx.Module("schedule_http",
	fx.Provide(
		NewScheduleHandler,
		NewRouter,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(srv *server.Server, router *Router) {
	router.RegisterRoutes(srv.Router)
}
