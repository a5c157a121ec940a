package http

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/TgFleet/internal/domain/schedule"
)

// ScheduleRequest carries the fields of a new schedule.
type ScheduleRequest struct {
	Name       string   `json:"name"`
	AccountIDs []string `json:"account_ids,omitempty"`
	Target     string   `json:"target"`
	Cron       string   `json:"cron"`
	Message    string   `json:"message,omitempty"`
	TemplateID string   `json:"template_id,omitempty"`
}

// ToggleRequest flips a schedule's enabled flag.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ScheduleHandler handles schedule management HTTP requests
type ScheduleHandler struct {
	scheduler *schedule.Scheduler
	logger    zerolog.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduler *schedule.Scheduler, logger zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler: scheduler,
		logger:    logger.With().Str("handler", "schedule").Logger(),
	}
}

func (h *ScheduleHandler) scheduleID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, ok := ctx.UserValue("schedule_id").(string)
	if !ok || id == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "schedule_id is required")
		return "", false
	}
	return id, true
}

// List handles GET /api/v1/schedules
func (h *ScheduleHandler) List(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, fasthttp.StatusOK, h.scheduler.List())
}

// Add handles POST /api/v1/schedules
func (h *ScheduleHandler) Add(ctx *fasthttp.RequestCtx) {
	var req ScheduleRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" || req.Cron == "" {
		h.writeError(ctx, fasthttp.StatusBadRequest, "target and cron are required")
		return
	}

	sched, err := h.scheduler.Add(req.Name, req.AccountIDs, req.Target, req.Cron, req.Message, req.TemplateID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusCreated, sched)
}

// Get handles GET /api/v1/schedules/{schedule_id}
func (h *ScheduleHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.scheduleID(ctx)
	if !ok {
		return
	}

	sched, err := h.scheduler.Get(id)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, sched)
}

// Delete handles DELETE /api/v1/schedules/{schedule_id}
func (h *ScheduleHandler) Delete(ctx *fasthttp.RequestCtx) {
	id, ok := h.scheduleID(ctx)
	if !ok {
		return
	}

	if err := h.scheduler.Remove(id); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Toggle handles POST /api/v1/schedules/{schedule_id}/toggle
func (h *ScheduleHandler) Toggle(ctx *fasthttp.RequestCtx) {
	id, ok := h.scheduleID(ctx)
	if !ok {
		return
	}

	var req ToggleRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.scheduler.Toggle(id, req.Enabled); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// Stats handles GET /api/v1/schedules/stats
func (h *ScheduleHandler) Stats(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, fasthttp.StatusOK, h.scheduler.Stats())
}

// handleError maps domain errors to HTTP status codes
func (h *ScheduleHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, schedule.ErrScheduleNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, "schedule not found")
	case errors.Is(err, schedule.ErrInvalidCron):
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid cron expression")
	case errors.Is(err, schedule.ErrNoPayload):
		h.writeError(ctx, fasthttp.StatusBadRequest, "exactly one of message and template_id is required")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes JSON response
func (h *ScheduleHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *ScheduleHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(ErrorResponse{Error: message})
}
