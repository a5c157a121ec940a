package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers stats HTTP routes
type Router struct {
	handler *StatsHandler
	logger  zerolog.Logger
}

// NewRouter creates a new stats router
func NewRouter(handler *StatsHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers stats routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/api/v1/stats", r.handler.Summary)
	rt.GET("/api/v1/stats/top", r.handler.Top)
	rt.GET("/api/v1/stats/trend", r.handler.Trend)
	rt.GET("/api/v1/stats/accounts/{account_id}", r.handler.Account)

	r.logger.Info().Msg("stats routes registered")
}
