package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers schedule HTTP routes
type Router struct {
	handler *ScheduleHandler
	logger  zerolog.Logger
}

// NewRouter creates a new schedule router
func NewRouter(handler *ScheduleHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers schedule routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/api/v1/schedules", r.handler.List)
	rt.POST("/api/v1/schedules", r.handler.Add)
	rt.GET("/api/v1/schedules/stats", r.handler.Stats)
	rt.GET("/api/v1/schedules/{schedule_id}", r.handler.Get)
	rt.DELETE("/api/v1/schedules/{schedule_id}", r.handler.Delete)
	rt.POST("/api/v1/schedules/{schedule_id}/toggle", r.handler.Toggle)

	r.logger.Info().Msg("schedule routes registered")
}
