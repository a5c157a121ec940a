package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers template HTTP routes
type Router struct {
	handler *TemplateHandler
	logger  zerolog.Logger
}

// NewRouter creates a new template router
func NewRouter(handler *TemplateHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers template routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/api/v1/templates", r.handler.List)
	rt.POST("/api/v1/templates", r.handler.Add)
	rt.GET("/api/v1/templates/search", r.handler.Search)
	rt.GET("/api/v1/templates/categories", r.handler.Categories)
	rt.GET("/api/v1/templates/usage", r.handler.Usage)
	rt.GET("/api/v1/templates/{template_id}", r.handler.Get)
	rt.PUT("/api/v1/templates/{template_id}", r.handler.Update)
	rt.DELETE("/api/v1/templates/{template_id}", r.handler.Delete)
	rt.GET("/api/v1/templates/{template_id}/variables", r.handler.Variables)

	r.logger.Info().Msg("template routes registered")
}
