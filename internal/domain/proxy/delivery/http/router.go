package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers proxy HTTP routes
type Router struct {
	handler *ProxyHandler
	logger  zerolog.Logger
}

// NewRouter creates a new proxy router
func NewRouter(handler *ProxyHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers proxy routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/api/v1/proxies", r.handler.List)
	rt.POST("/api/v1/proxies/test", r.handler.TestAll)
	rt.PUT("/api/v1/proxies/global", r.handler.SetGlobal)
	rt.DELETE("/api/v1/proxies/global", r.handler.RemoveGlobal)
	rt.PUT("/api/v1/proxies/{proxy_id}", r.handler.Add)
	rt.DELETE("/api/v1/proxies/{proxy_id}", r.handler.Delete)
	rt.POST("/api/v1/proxies/{proxy_id}/assign", r.handler.Assign)
	rt.POST("/api/v1/proxies/{proxy_id}/unassign", r.handler.Unassign)
	rt.POST("/api/v1/proxies/{proxy_id}/test", r.handler.Test)

	r.logger.Info().Msg("proxy routes registered")
}
