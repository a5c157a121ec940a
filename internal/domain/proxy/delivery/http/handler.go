package http

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/TgFleet/internal/domain/proxy"
	proxyerrors "github.com/Conte777/TgFleet/internal/domain/proxy/errors"
)

// ProxyRequest carries a proxy configuration.
type ProxyRequest struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// AssignRequest links an account to a proxy.
type AssignRequest struct {
	AccountID string `json:"account_id"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProxyHandler handles proxy management HTTP requests
type ProxyHandler struct {
	registry *proxy.Registry
	tester   *proxy.Tester
	logger   zerolog.Logger
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(registry *proxy.Registry, tester *proxy.Tester, logger zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{
		registry: registry,
		tester:   tester,
		logger:   logger.With().Str("handler", "proxy").Logger(),
	}
}

func (h *ProxyHandler) proxyID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, ok := ctx.UserValue("proxy_id").(string)
	if !ok || id == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "proxy_id is required")
		return "", false
	}
	return id, true
}

// List handles GET /api/v1/proxies
func (h *ProxyHandler) List(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, fasthttp.StatusOK, h.registry.List())
}

// Add handles PUT /api/v1/proxies/{proxy_id}
func (h *ProxyHandler) Add(ctx *fasthttp.RequestCtx) {
	proxyID, ok := h.proxyID(ctx)
	if !ok {
		return
	}

	var req ProxyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.registry.Add(proxyID, req.Protocol, req.Host, req.Port, req.Username, req.Password); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Delete handles DELETE /api/v1/proxies/{proxy_id}
func (h *ProxyHandler) Delete(ctx *fasthttp.RequestCtx) {
	proxyID, ok := h.proxyID(ctx)
	if !ok {
		return
	}

	if err := h.registry.Delete(proxyID); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// SetGlobal handles PUT /api/v1/proxies/global
func (h *ProxyHandler) SetGlobal(ctx *fasthttp.RequestCtx) {
	var req ProxyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.registry.SetGlobal(req.Protocol, req.Host, req.Port, req.Username, req.Password); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// RemoveGlobal handles DELETE /api/v1/proxies/global
func (h *ProxyHandler) RemoveGlobal(ctx *fasthttp.RequestCtx) {
	if err := h.registry.RemoveGlobal(); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Assign handles POST /api/v1/proxies/{proxy_id}/assign
func (h *ProxyHandler) Assign(ctx *fasthttp.RequestCtx) {
	proxyID, ok := h.proxyID(ctx)
	if !ok {
		return
	}

	var req AssignRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "account_id is required")
		return
	}

	if err := h.registry.Assign(req.AccountID, proxyID); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Unassign handles POST /api/v1/proxies/{proxy_id}/unassign
func (h *ProxyHandler) Unassign(ctx *fasthttp.RequestCtx) {
	proxyID, ok := h.proxyID(ctx)
	if !ok {
		return
	}

	var req AssignRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "account_id is required")
		return
	}

	if err := h.registry.Unassign(req.AccountID, proxyID); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Test handles POST /api/v1/proxies/{proxy_id}/test. The global proxy is
// tested under the id "global".
func (h *ProxyHandler) Test(ctx *fasthttp.RequestCtx) {
	proxyID, ok := h.proxyID(ctx)
	if !ok {
		return
	}

	result, err := h.tester.Test(ctx, proxyID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, result)
}

// TestAll handles POST /api/v1/proxies/test
func (h *ProxyHandler) TestAll(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, fasthttp.StatusOK, h.tester.TestAll(ctx))
}

// handleError maps domain errors to HTTP status codes
func (h *ProxyHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, proxyerrors.ErrProxyNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, "proxy not found")
	case errors.Is(err, proxyerrors.ErrUnsupportedProtocol):
		h.writeError(ctx, fasthttp.StatusBadRequest, "unsupported proxy protocol")
	case errors.Is(err, proxyerrors.ErrProxyNotUsable):
		h.writeError(ctx, fasthttp.StatusUnprocessableEntity, "proxy has no usable host or port")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes JSON response
func (h *ProxyHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *ProxyHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(ErrorResponse{Error: message})
}
