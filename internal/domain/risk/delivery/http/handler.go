package http

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/TgFleet/internal/domain/risk"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RiskHandler handles risk reporting HTTP requests
type RiskHandler struct {
	ledger *risk.Ledger
	logger zerolog.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(ledger *risk.Ledger, logger zerolog.Logger) *RiskHandler {
	return &RiskHandler{
		ledger: ledger,
		logger: logger.With().Str("handler", "risk").Logger(),
	}
}

// List handles GET /api/v1/risk/accounts
func (h *RiskHandler) List(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, fasthttp.StatusOK, h.ledger.RiskAccounts())
}

// Get handles GET /api/v1/risk/accounts/{account_id}
func (h *RiskHandler) Get(ctx *fasthttp.RequestCtx) {
	accountID, ok := ctx.UserValue("account_id").(string)
	if !ok || accountID == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "account_id is required")
		return
	}

	a := h.ledger.Get(accountID)
	if a == nil {
		h.writeError(ctx, fasthttp.StatusNotFound, "no risk state for account")
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, a)
}

// writeJSON writes JSON response
func (h *RiskHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *RiskHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(ErrorResponse{Error: message})
}
