package http

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/TgFleet/internal/domain/template"
)

// TemplateRequest carries template fields for create and update.
type TemplateRequest struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

// VariablesResponse lists the placeholders of a template.
type VariablesResponse struct {
	TemplateID string   `json:"template_id"`
	Variables  []string `json:"variables"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TemplateHandler handles template management HTTP requests
type TemplateHandler struct {
	manager *template.Manager
	logger  zerolog.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(manager *template.Manager, logger zerolog.Logger) *TemplateHandler {
	return &TemplateHandler{
		manager: manager,
		logger:  logger.With().Str("handler", "template").Logger(),
	}
}

func (h *TemplateHandler) templateID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, ok := ctx.UserValue("template_id").(string)
	if !ok || id == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "template_id is required")
		return "", false
	}
	return id, true
}

// List handles GET /api/v1/templates?category=
func (h *TemplateHandler) List(ctx *fasthttp.RequestCtx) {
	category := string(ctx.QueryArgs().Peek("category"))
	h.writeJSON(ctx, fasthttp.StatusOK, h.manager.List(category))
}

// Add handles POST /api/v1/templates
func (h *TemplateHandler) Add(ctx *fasthttp.RequestCtx) {
	var req TemplateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Content == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "name and content are required")
		return
	}

	tpl, err := h.manager.Add(req.Name, req.Content, req.Category)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusCreated, tpl)
}

// Get handles GET /api/v1/templates/{template_id}
func (h *TemplateHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.templateID(ctx)
	if !ok {
		return
	}

	tpl, err := h.manager.Get(id)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, tpl)
}

// Update handles PUT /api/v1/templates/{template_id}
func (h *TemplateHandler) Update(ctx *fasthttp.RequestCtx) {
	id, ok := h.templateID(ctx)
	if !ok {
		return
	}

	var req TemplateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.Update(id, req.Name, req.Content, req.Category); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Delete handles DELETE /api/v1/templates/{template_id}
func (h *TemplateHandler) Delete(ctx *fasthttp.RequestCtx) {
	id, ok := h.templateID(ctx)
	if !ok {
		return
	}

	if err := h.manager.Delete(id); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Search handles GET /api/v1/templates/search?q=
func (h *TemplateHandler) Search(ctx *fasthttp.RequestCtx) {
	query := string(ctx.QueryArgs().Peek("q"))
	if query == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "q is required")
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, h.manager.Search(query))
}

// Categories handles GET /api/v1/templates/categories
func (h *TemplateHandler) Categories(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, fasthttp.StatusOK, h.manager.Categories())
}

// Variables handles GET /api/v1/templates/{template_id}/variables
func (h *TemplateHandler) Variables(ctx *fasthttp.RequestCtx) {
	id, ok := h.templateID(ctx)
	if !ok {
		return
	}

	tpl, err := h.manager.Get(id)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, VariablesResponse{
		TemplateID: id,
		Variables:  template.Variables(tpl.Content),
	})
}

// Usage handles GET /api/v1/templates/usage
func (h *TemplateHandler) Usage(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, fasthttp.StatusOK, h.manager.Usage())
}

// handleError maps domain errors to HTTP status codes
func (h *TemplateHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, template.ErrTemplateNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, "template not found")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes JSON response
func (h *TemplateHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *TemplateHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(ErrorResponse{Error: message})
}
