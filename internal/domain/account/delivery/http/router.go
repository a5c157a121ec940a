package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers account HTTP routes
type Router struct {
	handler *AccountHandler
	health  *HealthHandler
	logger  zerolog.Logger
}

// NewRouter creates a new account router
func NewRouter(handler *AccountHandler, health *HealthHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		health:  health,
		logger:  logger,
	}
}

// RegisterRoutes registers account routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/health", r.health.Handle)

	rt.GET("/api/v1/accounts", r.handler.List)
	rt.POST("/api/v1/accounts", r.handler.Add)
	rt.GET("/api/v1/accounts/{account_id}", r.handler.Get)
	rt.DELETE("/api/v1/accounts/{account_id}", r.handler.Delete)
	rt.POST("/api/v1/accounts/{account_id}/check", r.handler.Check)
	rt.GET("/api/v1/accounts/{account_id}/credential", r.handler.Credential)
	rt.POST("/api/v1/accounts/{account_id}/disconnect", r.handler.Disconnect)

	r.logger.Info().Msg("account routes registered")
}
