package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers risk HTTP routes
type Router struct {
	handler *RiskHandler
	logger  zerolog.Logger
}

// NewRouter creates a new risk router
func NewRouter(handler *RiskHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers risk routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/api/v1/risk/accounts", r.handler.List)
	rt.GET("/api/v1/risk/accounts/{account_id}", r.handler.Get)

	r.logger.Info().Msg("risk routes registered")
}
