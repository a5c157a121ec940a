package http

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// mockFleet implements FleetHealthChecker for testing
type mockFleet struct {
	accounts []string
	live     int
}

func (m *mockFleet) AccountIDs() []string {
	return m.accounts
}

func (m *mockFleet) LiveCount() int {
	return m.live
}

func TestHealthHandler_AllHealthy(t *testing.T) {
	handler := NewHealthHandler(&mockFleet{accounts: []string{"a", "b"}, live: 2}, zerolog.Nop())

	ctx := &fasthttp.RequestCtx{}
	handler.Handle(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Errorf("Expected status %d, got %d", fasthttp.StatusOK, ctx.Response.StatusCode())
	}

	var response HealthResponse
	if err := json.Unmarshal(ctx.Response.Body(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Status != HealthStatusHealthy {
		t.Errorf("Expected status %s, got %s", HealthStatusHealthy, response.Status)
	}

	if len(response.Components) != 2 {
		t.Errorf("Expected 2 components, got %d", len(response.Components))
	}

	for _, comp := range response.Components {
		if !comp.Healthy {
			t.Errorf("Component %s should be healthy", comp.Name)
		}
	}
}

func TestHealthHandler_NoLiveConnections(t *testing.T) {
	handler := NewHealthHandler(&mockFleet{accounts: []string{"a"}, live: 0}, zerolog.Nop())

	ctx := &fasthttp.RequestCtx{}
	handler.Handle(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Errorf("Expected status %d, got %d", fasthttp.StatusOK, ctx.Response.StatusCode())
	}

	var response HealthResponse
	if err := json.Unmarshal(ctx.Response.Body(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Status != HealthStatusDegraded {
		t.Errorf("Expected status %s, got %s", HealthStatusDegraded, response.Status)
	}
}

func TestHealthHandler_NoAccounts(t *testing.T) {
	handler := NewHealthHandler(&mockFleet{}, zerolog.Nop())

	ctx := &fasthttp.RequestCtx{}
	handler.Handle(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	}

	var response HealthResponse
	if err := json.Unmarshal(ctx.Response.Body(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Status != HealthStatusUnhealthy {
		t.Errorf("Expected status %s, got %s", HealthStatusUnhealthy, response.Status)
	}
}
