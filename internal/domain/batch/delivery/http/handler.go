package http

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/batch"
)

// SendRequest fans a text message out. An empty account list means the whole
// fleet.
type SendRequest struct {
	AccountIDs []string `json:"account_ids,omitempty"`
	Target     string   `json:"target"`
	Message    string   `json:"message"`
}

// SendTemplateRequest fans a rendered template out.
type SendTemplateRequest struct {
	AccountIDs []string `json:"account_ids,omitempty"`
	Target     string   `json:"target"`
	TemplateID string   `json:"template_id"`
}

// AccountsRequest names the accounts of a batch operation.
type AccountsRequest struct {
	AccountIDs []string `json:"account_ids,omitempty"`
}

// ImportRequest carries credentials to register, keyed by account id.
type ImportRequest struct {
	Credentials map[string]string `json:"credentials"`
}

// ExportResponse pairs exported credentials with the per-item report.
type ExportResponse struct {
	Credentials map[string]string  `json:"credentials"`
	Report      domain.BatchReport `json:"report"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BatchHandler handles batch fan-out HTTP requests
type BatchHandler struct {
	coordinator *batch.Coordinator
	logger      zerolog.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(coordinator *batch.Coordinator, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{
		coordinator: coordinator,
		logger:      logger.With().Str("handler", "batch").Logger(),
	}
}

// SendMessage handles POST /api/v1/batch/message
func (h *BatchHandler) SendMessage(ctx *fasthttp.RequestCtx) {
	var req SendRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" || req.Message == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "target and message are required")
		return
	}

	report := h.coordinator.SendMessage(ctx, req.AccountIDs, req.Target, req.Message)
	h.writeJSON(ctx, fasthttp.StatusOK, report)
}

// SendTemplate handles POST /api/v1/batch/template
func (h *BatchHandler) SendTemplate(ctx *fasthttp.RequestCtx) {
	var req SendTemplateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" || req.TemplateID == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "target and template_id are required")
		return
	}

	report := h.coordinator.SendTemplate(ctx, req.AccountIDs, req.Target, req.TemplateID)
	h.writeJSON(ctx, fasthttp.StatusOK, report)
}

// CheckHealth handles POST /api/v1/batch/check
func (h *BatchHandler) CheckHealth(ctx *fasthttp.RequestCtx) {
	var req AccountsRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
			return
		}
	}

	report := h.coordinator.CheckHealth(ctx, req.AccountIDs)
	h.writeJSON(ctx, fasthttp.StatusOK, report)
}

// Export handles POST /api/v1/batch/export
func (h *BatchHandler) Export(ctx *fasthttp.RequestCtx) {
	var req AccountsRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
			return
		}
	}

	credentials, report := h.coordinator.ExportCredentials(ctx, req.AccountIDs)
	h.writeJSON(ctx, fasthttp.StatusOK, ExportResponse{
		Credentials: credentials,
		Report:      report,
	})
}

// Import handles POST /api/v1/batch/import
func (h *BatchHandler) Import(ctx *fasthttp.RequestCtx) {
	var req ImportRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Credentials) == 0 {
		h.writeError(ctx, fasthttp.StatusBadRequest, "credentials are required")
		return
	}

	report := h.coordinator.ImportCredentials(ctx, req.Credentials)
	h.writeJSON(ctx, fasthttp.StatusOK, report)
}

// Delete handles POST /api/v1/batch/delete
func (h *BatchHandler) Delete(ctx *fasthttp.RequestCtx) {
	var req AccountsRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.AccountIDs) == 0 {
		h.writeError(ctx, fasthttp.StatusBadRequest, "account_ids are required")
		return
	}

	report := h.coordinator.DeleteAccounts(ctx, req.AccountIDs)
	h.writeJSON(ctx, fasthttp.StatusOK, report)
}

// writeJSON writes JSON response
func (h *BatchHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *BatchHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(ErrorResponse{Error: message})
}
