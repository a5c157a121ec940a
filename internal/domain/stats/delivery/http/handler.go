package http

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/TgFleet/internal/domain/stats"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatsHandler handles delivery statistics HTTP requests
type StatsHandler struct {
	tracker *stats.Tracker
	logger  zerolog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(tracker *stats.Tracker, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		tracker: tracker,
		logger:  logger.With().Str("handler", "stats").Logger(),
	}
}

// Summary handles GET /api/v1/stats
func (h *StatsHandler) Summary(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, fasthttp.StatusOK, h.tracker.Summarize())
}

// Account handles GET /api/v1/stats/accounts/{account_id}
func (h *StatsHandler) Account(ctx *fasthttp.RequestCtx) {
	accountID, ok := ctx.UserValue("account_id").(string)
	if !ok || accountID == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "account_id is required")
		return
	}

	a := h.tracker.Account(accountID)
	if a == nil {
		h.writeError(ctx, fasthttp.StatusNotFound, "no stats for account")
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, a)
}

// Top handles GET /api/v1/stats/top?limit=
func (h *StatsHandler) Top(ctx *fasthttp.RequestCtx) {
	limit := 10
	if raw := string(ctx.QueryArgs().Peek("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(ctx, fasthttp.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	h.writeJSON(ctx, fasthttp.StatusOK, h.tracker.TopAccounts(limit))
}

// Trend handles GET /api/v1/stats/trend?days=
func (h *StatsHandler) Trend(ctx *fasthttp.RequestCtx) {
	days := 7
	if raw := string(ctx.QueryArgs().Peek("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(ctx, fasthttp.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	h.writeJSON(ctx, fasthttp.StatusOK, h.tracker.Trend(days))
}

// writeJSON writes JSON response
func (h *StatsHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *StatsHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(ErrorResponse{Error: message})
}
