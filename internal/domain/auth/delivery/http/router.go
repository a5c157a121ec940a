package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers login HTTP routes
type Router struct {
	handler *AuthHandler
	logger  zerolog.Logger
}

// NewRouter creates a new auth router
func NewRouter(handler *AuthHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers login routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	// QR login endpoints
	rt.POST("/api/v1/auth/qr/{account_id}/start", r.handler.StartQR)
	rt.GET("/api/v1/auth/qr/{account_id}/status", r.handler.QRStatus)
	rt.POST("/api/v1/auth/qr/{account_id}/password", r.handler.SubmitQRPassword)
	rt.POST("/api/v1/auth/qr/{account_id}/refresh", r.handler.RefreshQR)
	rt.DELETE("/api/v1/auth/qr/{account_id}", r.handler.CancelQR)

	// Phone login endpoints
	rt.POST("/api/v1/auth/phone/{account_id}/code", r.handler.SendCode)
	rt.POST("/api/v1/auth/phone/{account_id}/verify", r.handler.VerifyCode)
	rt.POST("/api/v1/auth/phone/{account_id}/password", r.handler.Submit2FA)
	rt.GET("/api/v1/auth/phone/{account_id}/status", r.handler.PhoneStatus)
	rt.DELETE("/api/v1/auth/phone/{account_id}", r.handler.CancelPhone)

	r.logger.Info().Msg("auth routes registered")
}
