package http

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/account"
	accounterrors "github.com/Conte777/TgFleet/internal/domain/account/errors"
	"github.com/Conte777/TgFleet/internal/domain/risk"
	"github.com/Conte777/TgFleet/internal/domain/stats"
)

// AddAccountRequest imports an already authorized account by credential,
// optionally pinning validation to an explicit proxy.
type AddAccountRequest struct {
	AccountID  string `json:"account_id"`
	Credential string `json:"credential"`
	ProxyID    string `json:"proxy_id,omitempty"`
}

// CredentialResponse carries an exported credential.
type CredentialResponse struct {
	AccountID  string `json:"account_id"`
	Credential string `json:"credential"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AccountHandler handles account management HTTP requests
type AccountHandler struct {
	pool     *account.Pool
	registry *account.Registry
	proxies  account.ProxyResolver
	ledger   *risk.Ledger
	tracker  *stats.Tracker
	logger   zerolog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(
	pool *account.Pool,
	registry *account.Registry,
	proxies account.ProxyResolver,
	ledger *risk.Ledger,
	tracker *stats.Tracker,
	logger zerolog.Logger,
) *AccountHandler {
	return &AccountHandler{
		pool:     pool,
		registry: registry,
		proxies:  proxies,
		ledger:   ledger,
		tracker:  tracker,
		logger:   logger.With().Str("handler", "account").Logger(),
	}
}

func (h *AccountHandler) accountID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, ok := ctx.UserValue("account_id").(string)
	if !ok || id == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "account_id is required")
		return "", false
	}
	return id, true
}

// List handles GET /api/v1/accounts
func (h *AccountHandler) List(ctx *fasthttp.RequestCtx) {
	accounts := h.pool.List(h.ledger.Level)
	h.writeJSON(ctx, fasthttp.StatusOK, accounts)
}

// Get handles GET /api/v1/accounts/{account_id}
func (h *AccountHandler) Get(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	for _, info := range h.pool.List(h.ledger.Level) {
		if info.AccountID == accountID {
			h.writeJSON(ctx, fasthttp.StatusOK, info)
			return
		}
	}
	h.writeError(ctx, fasthttp.StatusNotFound, "account not found")
}

// Add handles POST /api/v1/accounts
func (h *AccountHandler) Add(ctx *fasthttp.RequestCtx) {
	var req AddAccountRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" || req.Credential == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "account_id and credential are required")
		return
	}

	proxy := h.proxies.ResolveForAccount(req.AccountID)
	if req.ProxyID != "" {
		proxy = h.proxies.Get(req.ProxyID)
	}
	if err := h.registry.AddWithCredential(ctx, req.AccountID, req.Credential, proxy); err != nil {
		h.logger.Error().Err(err).Str("account_id", req.AccountID).Msg("failed to add account")
		h.handleError(ctx, err)
		return
	}

	acc, err := h.registry.Get(req.AccountID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusCreated, acc.Info())
}

// Delete handles DELETE /api/v1/accounts/{account_id}
func (h *AccountHandler) Delete(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	if err := h.pool.Remove(ctx, accountID); err != nil {
		h.handleError(ctx, err)
		return
	}
	if err := h.ledger.Forget(accountID); err != nil {
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("forget risk state")
	}
	if err := h.tracker.Forget(accountID); err != nil {
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("forget stats")
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Check handles POST /api/v1/accounts/{account_id}/check
func (h *AccountHandler) Check(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	if err := h.pool.CheckHealth(ctx, accountID); err != nil {
		if errors.Is(err, accounterrors.ErrAccountNotFound) {
			h.writeError(ctx, fasthttp.StatusNotFound, "account not found")
			return
		}
		h.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
			"account_id": accountID,
			"healthy":    false,
			"error":      err.Error(),
		})
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"healthy":    true,
	})
}

// Credential handles GET /api/v1/accounts/{account_id}/credential
func (h *AccountHandler) Credential(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	credential, err := h.pool.ExportCredential(accountID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, CredentialResponse{
		AccountID:  accountID,
		Credential: credential,
	})
}

// Disconnect handles POST /api/v1/accounts/{account_id}/disconnect
func (h *AccountHandler) Disconnect(ctx *fasthttp.RequestCtx) {
	accountID, ok := h.accountID(ctx)
	if !ok {
		return
	}

	if _, err := h.registry.Get(accountID); err != nil {
		h.handleError(ctx, err)
		return
	}
	h.pool.Drop(ctx, accountID)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// handleError maps domain errors to HTTP status codes
func (h *AccountHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, accounterrors.ErrAccountNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, "account not found")
	case errors.Is(err, accounterrors.ErrAccountExists):
		h.writeError(ctx, fasthttp.StatusConflict, "account already exists")
	case errors.Is(err, accounterrors.ErrDefaultProtected):
		h.writeError(ctx, fasthttp.StatusForbidden, "the default account cannot be removed")
	case errors.Is(err, accounterrors.ErrCredentialInvalid), errors.Is(err, domain.ErrNotAuthorized):
		h.writeError(ctx, fasthttp.StatusUnprocessableEntity, "credential is not authorized")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes JSON response
func (h *AccountHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *AccountHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(ErrorResponse{Error: message})
}
