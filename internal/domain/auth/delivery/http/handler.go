package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/TgFleet/internal/domain"
	accounterrors "github.com/Conte777/TgFleet/internal/domain/account/errors"
	"github.com/Conte777/TgFleet/internal/domain/auth"
	"github.com/Conte777/TgFleet/internal/domain/auth/entities"
	autherrors "github.com/Conte777/TgFleet/internal/domain/auth/errors"
)

// QRStatusResponse is the polled QR session view.
type QRStatusResponse struct {
	entities.QRSession
	RemainingSeconds int `json:"remaining_seconds"`
}

// StartQRRequest carries the optional proxy override for a QR login.
type StartQRRequest struct {
	ProxyID string `json:"proxy_id,omitempty"`
}

// SendCodeRequest carries the phone number for a phone login and an optional
// proxy override.
type SendCodeRequest struct {
	Phone   string `json:"phone"`
	ProxyID string `json:"proxy_id,omitempty"`
}

// VerifyCodeRequest carries the received login code.
type VerifyCodeRequest struct {
	Code string `json:"code"`
}

// PasswordRequest carries a 2FA password.
type PasswordRequest struct {
	Password string `json:"password"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthHandler handles login HTTP requests
type AuthHandler struct {
	manager *auth.Manager
	logger  zerolog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(manager *auth.Manager, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		manager: manager,
		logger:  logger.With().Str("handler", "auth").Logger(),
	}
}

func (h *AuthHandler) accountID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, ok := ctx.UserValue("account_id").(string)
	if !ok || id == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "account_id is required")
		return "", false
	}
	return id, true
}

// StartQR handles POST /api/v1/auth/qr/{account_id}/start
func (h *AuthHandler) StartQR(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	var req StartQRRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.manager.StartQR(ctx, accountID, req.ProxyID)
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("failed to start QR login")
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, h.qrView(session))
}

// QRStatus handles GET /api/v1/auth/qr/{account_id}/status
func (h *AuthHandler) QRStatus(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	session, err := h.manager.QRStatus(accountID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, h.qrView(session))
}

// SubmitQRPassword handles POST /api/v1/auth/qr/{account_id}/password
func (h *AuthHandler) SubmitQRPassword(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	var req PasswordRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "password is required")
		return
	}

	session, err := h.manager.SubmitQRPassword(ctx, accountID, req.Password)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, h.qrView(session))
}

// RefreshQR handles POST /api/v1/auth/qr/{account_id}/refresh
func (h *AuthHandler) RefreshQR(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	session, err := h.manager.RefreshQR(ctx, accountID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, h.qrView(session))
}

// CancelQR handles DELETE /api/v1/auth/qr/{account_id}
func (h *AuthHandler) CancelQR(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	if err := h.manager.CancelQR(accountID); err != nil {
		h.handleError(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// SendCode handles POST /api/v1/auth/phone/{account_id}/code
func (h *AuthHandler) SendCode(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	var req SendCodeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "phone is required")
		return
	}

	session, err := h.manager.SendCode(ctx, accountID, req.Phone, req.ProxyID)
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("failed to send login code")
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, session)
}

// VerifyCode handles POST /api/v1/auth/phone/{account_id}/verify
func (h *AuthHandler) VerifyCode(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	var req VerifyCodeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "code is required")
		return
	}

	session, err := h.manager.VerifyCode(ctx, accountID, req.Code)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, session)
}

// Submit2FA handles POST /api/v1/auth/phone/{account_id}/password
func (h *AuthHandler) Submit2FA(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	var req PasswordRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "password is required")
		return
	}

	session, err := h.manager.Submit2FA(ctx, accountID, req.Password)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, session)
}

// PhoneStatus handles GET /api/v1/auth/phone/{account_id}/status
func (h *AuthHandler) PhoneStatus(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	session, err := h.manager.PhoneStatus(accountID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, session)
}

// CancelPhone handles DELETE /api/v1/auth/phone/{account_id}
func (h *AuthHandler) CancelPhone(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	if err := h.manager.CancelPhone(accountID); err != nil {
		h.handleError(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (h *AuthHandler) qrView(session *entities.QRSession) QRStatusResponse {
	view := QRStatusResponse{QRSession: *session}
	if session.State == entities.QRStateWaiting {
		view.RemainingSeconds = int(session.Remaining(time.Now()).Seconds())
	}
	return view
}

// handleError maps domain errors to HTTP status codes
func (h *AuthHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, accounterrors.ErrAccountExists):
		h.writeError(ctx, fasthttp.StatusConflict, "account already exists")
	case errors.Is(err, autherrors.ErrLoginInProgress):
		h.writeError(ctx, fasthttp.StatusConflict, "login already in progress")
	case errors.Is(err, autherrors.ErrNoActiveLogin):
		h.writeError(ctx, fasthttp.StatusNotFound, "no active login session")
	case errors.Is(err, autherrors.ErrWrongState):
		h.writeError(ctx, fasthttp.StatusConflict, "session is not in the required state")
	case errors.Is(err, autherrors.ErrInvalidPhone):
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid phone number")
	default:
		switch domain.KindOf(err) {
		case domain.KindPasswordInvalid:
			h.writeError(ctx, fasthttp.StatusUnauthorized, "invalid password")
		case domain.KindCodeInvalid:
			h.writeError(ctx, fasthttp.StatusBadRequest, "invalid code")
		case domain.KindCodeExpired:
			h.writeError(ctx, fasthttp.StatusGone, "code expired")
		case domain.KindFlood:
			h.writeError(ctx, fasthttp.StatusTooManyRequests, "flood wait")
		default:
			h.logger.Error().Err(err).Msg("unexpected error")
			h.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
		}
	}
}

// writeJSON writes JSON response
func (h *AuthHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *AuthHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(ErrorResponse{Error: message})
}
