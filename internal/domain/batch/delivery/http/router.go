package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers batch HTTP routes
type Router struct {
	handler *BatchHandler
	logger  zerolog.Logger
}

// NewRouter creates a new batch router
func NewRouter(handler *BatchHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers batch routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.POST("/api/v1/batch/message", r.handler.SendMessage)
	rt.POST("/api/v1/batch/template", r.handler.SendTemplate)
	rt.POST("/api/v1/batch/check", r.handler.CheckHealth)
	rt.POST("/api/v1/batch/import", r.handler.Import)
	rt.POST("/api/v1/batch/export", r.handler.Export)
	rt.POST("/api/v1/batch/delete", r.handler.Delete)

	r.logger.Info().Msg("batch routes registered")
}
