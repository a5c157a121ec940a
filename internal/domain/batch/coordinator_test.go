package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/risk"
	"github.com/Conte777/TgFleet/internal/infrastructure/metrics"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

type stubClient struct {
	accountID string
	sendErr   error
	sent      []string
	mu        sync.Mutex
}

func (s *stubClient) Connect(context.Context) error              { return nil }
func (s *stubClient) Disconnect(context.Context) error           { return nil }
func (s *stubClient) IsConnected() bool                          { return true }
func (s *stubClient) IsAuthorized(context.Context) (bool, error) { return true, nil }
func (s *stubClient) Profile(context.Context) (*domain.Profile, error) {
	return &domain.Profile{}, nil
}
func (s *stubClient) ExportCredential(context.Context) (string, error) { return "", nil }
func (s *stubClient) AccountID() string                                { return s.accountID }

func (s *stubClient) SendMessage(_ context.Context, target, text string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, target+"|"+text)
	return nil
}

type stubFleet struct {
	ids         []string
	clients     map[string]*stubClient
	acquireErr  map[string]error
	removeErr   map[string]error
	acquired    []string
	healthFails map[string]error
	importErr   map[string]error
	imported    []string
}

func (f *stubFleet) AccountIDs() []string { return f.ids }

func (f *stubFleet) Acquire(_ context.Context, accountID, _ string) (domain.Client, error) {
	f.acquired = append(f.acquired, accountID)
	if err := f.acquireErr[accountID]; err != nil {
		return nil, err
	}
	c, ok := f.clients[accountID]
	if !ok {
		c = &stubClient{accountID: accountID}
		if f.clients == nil {
			f.clients = make(map[string]*stubClient)
		}
		f.clients[accountID] = c
	}
	return c, nil
}

func (f *stubFleet) ProfileOf(accountID string) (*domain.Profile, error) {
	return &domain.Profile{FirstName: "fn-" + accountID}, nil
}

func (f *stubFleet) ExportCredential(accountID string) (string, error) {
	if err := f.acquireErr[accountID]; err != nil {
		return "", err
	}
	return "cred-" + accountID, nil
}

func (f *stubFleet) CheckHealth(_ context.Context, accountID string) error {
	return f.healthFails[accountID]
}

func (f *stubFleet) Remove(_ context.Context, accountID string) error {
	return f.removeErr[accountID]
}

func (f *stubFleet) Import(_ context.Context, accountID, credential string) error {
	if err := f.importErr[accountID]; err != nil {
		return err
	}
	f.imported = append(f.imported, accountID+"="+credential)
	return nil
}

type stubRenderer struct{}

func (stubRenderer) RenderTemplate(id, _ string, profile *domain.Profile) (string, error) {
	if id == "missing" {
		return "", errors.New("template not found")
	}
	return "hello " + profile.FirstName, nil
}

type countingStats struct {
	sent, failed int
}

func (c *countingStats) RecordSent(string) error   { c.sent++; return nil }
func (c *countingStats) RecordFailed(string) error { c.failed++; return nil }

type stubRisk struct {
	banned   map[string]bool
	sendOK   []string
	sendFail []string
}

func (s *stubRisk) Level(accountID string) string {
	if s.banned[accountID] {
		return "banned"
	}
	return "low"
}

func (s *stubRisk) RecordMessageSuccess(accountID string) error {
	s.sendOK = append(s.sendOK, accountID)
	return nil
}

func (s *stubRisk) RecordMessageFailure(accountID, _ string) error {
	s.sendFail = append(s.sendFail, accountID)
	return nil
}

func newTestCoordinator(fleet *stubFleet, risk RiskGate) (*Coordinator, *countingStats) {
	stats := &countingStats{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := NewCoordinator(
		&config.BatchConfig{DefaultDelay: time.Millisecond},
		fleet, stubRenderer{}, stats, risk, m, zerolog.Nop(),
	)
	return c, stats
}

func TestCoordinator_SendMessageOrderAndIsolation(t *testing.T) {
	fleet := &stubFleet{
		ids:        []string{"a", "b", "c"},
		acquireErr: map[string]error{"b": errors.New("connection refused")},
	}
	c, stats := newTestCoordinator(fleet, nil)

	report := c.SendMessage(context.Background(), nil, "@dest", "hi")

	if report.Total != 3 || report.SuccessCount != 2 || report.FailCount != 1 {
		t.Fatalf("report = %d/%d/%d, want 3 total, 2 ok, 1 failed", report.Total, report.SuccessCount, report.FailCount)
	}
	for i, want := range []string{"a", "b", "c"} {
		if report.Results[i].AccountID != want {
			t.Errorf("Results[%d] = %s, want %s (input order)", i, report.Results[i].AccountID, want)
		}
	}
	if report.Results[1].Success || report.Results[1].Error == "" {
		t.Error("failed item not reported with its error")
	}
	if report.Results[0].Success != true || report.Results[2].Success != true {
		t.Error("one failure poisoned sibling items")
	}
	if stats.sent != 2 {
		t.Errorf("recorded sent = %d, want 2", stats.sent)
	}
}

func TestCoordinator_SendMessagePacing(t *testing.T) {
	fleet := &stubFleet{ids: []string{"a", "b", "c"}}
	stats := &countingStats{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := NewCoordinator(
		&config.BatchConfig{DefaultDelay: 30 * time.Millisecond},
		fleet, stubRenderer{}, stats, nil, m, zerolog.Nop(),
	)

	start := time.Now()
	c.SendMessage(context.Background(), nil, "@dest", "hi")
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("3 items finished in %v, want at least two inter-item delays", elapsed)
	}
}

func TestCoordinator_BannedAccountSkipped(t *testing.T) {
	fleet := &stubFleet{ids: []string{"ok", "bad"}}
	c, _ := newTestCoordinator(fleet, &stubRisk{banned: map[string]bool{"bad": true}})

	report := c.SendMessage(context.Background(), nil, "@dest", "hi")

	if report.SuccessCount != 1 || report.FailCount != 1 {
		t.Fatalf("report = %d ok/%d failed, want 1/1", report.SuccessCount, report.FailCount)
	}
	for _, id := range fleet.acquired {
		if id == "bad" {
			t.Error("banned account was still acquired")
		}
	}
}

func TestCoordinator_SendTemplatePerAccountRender(t *testing.T) {
	fleet := &stubFleet{ids: []string{"x", "y"}}
	c, _ := newTestCoordinator(fleet, nil)

	report := c.SendTemplate(context.Background(), nil, "me", "tpl1")
	if report.SuccessCount != 2 {
		t.Fatalf("SuccessCount = %d, want 2: %+v", report.SuccessCount, report.Results)
	}

	for _, id := range []string{"x", "y"} {
		client := fleet.clients[id]
		if len(client.sent) != 1 || client.sent[0] != "me|hello fn-"+id {
			t.Errorf("%s sent %v, want rendered per-account text", id, client.sent)
		}
	}
}

func TestCoordinator_SendTemplateMissingTemplate(t *testing.T) {
	fleet := &stubFleet{ids: []string{"x"}}
	c, _ := newTestCoordinator(fleet, nil)

	report := c.SendTemplate(context.Background(), nil, "me", "missing")
	if report.FailCount != 1 {
		t.Fatalf("FailCount = %d, want 1", report.FailCount)
	}
	if len(fleet.acquired) != 0 {
		t.Error("acquired a connection for an unrenderable item")
	}
}

func TestCoordinator_ExportCredentials(t *testing.T) {
	fleet := &stubFleet{
		ids:        []string{"a", "b"},
		acquireErr: map[string]error{"b": errors.New("not found")},
	}
	c, _ := newTestCoordinator(fleet, nil)

	creds, report := c.ExportCredentials(context.Background(), nil)
	if report.SuccessCount != 1 || report.FailCount != 1 {
		t.Fatalf("report = %d/%d, want 1/1", report.SuccessCount, report.FailCount)
	}
	if creds["a"] != "cred-a" {
		t.Errorf("creds = %v, want cred-a exported", creds)
	}
	if _, ok := creds["b"]; ok {
		t.Error("failed export leaked a credential entry")
	}
}

func TestCoordinator_DeleteAccountsProtection(t *testing.T) {
	fleet := &stubFleet{
		ids:       []string{"default", "extra"},
		removeErr: map[string]error{"default": errors.New("default account cannot be removed")},
	}
	c, _ := newTestCoordinator(fleet, nil)

	report := c.DeleteAccounts(context.Background(), []string{"default", "extra"})
	if report.SuccessCount != 1 || report.FailCount != 1 {
		t.Fatalf("report = %d/%d, want 1/1", report.SuccessCount, report.FailCount)
	}
	if report.Results[0].Success {
		t.Error("protected delete reported as success")
	}
}

func TestCoordinator_CheckHealth(t *testing.T) {
	fleet := &stubFleet{
		ids:         []string{"a", "b"},
		healthFails: map[string]error{"b": errors.New("session is not authorized")},
	}
	c, _ := newTestCoordinator(fleet, nil)

	report := c.CheckHealth(context.Background(), nil)
	if report.SuccessCount != 1 || report.FailCount != 1 {
		t.Fatalf("report = %d/%d, want 1/1", report.SuccessCount, report.FailCount)
	}
}

func TestCoordinator_SendOutcomesReachRiskGate(t *testing.T) {
	fleet := &stubFleet{
		ids:     []string{"good", "flooded"},
		clients: map[string]*stubClient{"flooded": {accountID: "flooded", sendErr: errors.New("rpc error: FLOOD_WAIT_300")}},
	}
	gate := &stubRisk{}
	c, _ := newTestCoordinator(fleet, gate)

	c.SendMessage(context.Background(), nil, "@dest", "hi")

	if len(gate.sendOK) != 1 || gate.sendOK[0] != "good" {
		t.Errorf("successes recorded = %v, want [good]", gate.sendOK)
	}
	if len(gate.sendFail) != 1 || gate.sendFail[0] != "flooded" {
		t.Errorf("failures recorded = %v, want [flooded]", gate.sendFail)
	}
}

func TestCoordinator_FloodWaitSendFlagsAccountBanned(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "risk.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ledger, err := risk.NewLedger(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	fleet := &stubFleet{
		ids:     []string{"flooded"},
		clients: map[string]*stubClient{"flooded": {accountID: "flooded", sendErr: errors.New("rpc error: FLOOD_WAIT_300")}},
	}
	c, _ := newTestCoordinator(fleet, ledger)

	c.SendMessage(context.Background(), nil, "@dest", "hi")

	if got := ledger.Level("flooded"); got != risk.LevelBanned {
		t.Fatalf("Level = %q, want %q after a flood-wait send", got, risk.LevelBanned)
	}
	rec := ledger.Get("flooded")
	if rec == nil || rec.MessagesFailed != 1 {
		t.Fatalf("risk record = %+v, want one failed message", rec)
	}
}

func TestCoordinator_ImportCredentials(t *testing.T) {
	fleet := &stubFleet{
		importErr: map[string]error{"bad": errors.New("account already exists")},
	}
	c, _ := newTestCoordinator(fleet, nil)

	report := c.ImportCredentials(context.Background(), map[string]string{
		"bad":   "cred-bad",
		"zeta":  "cred-z",
		"alpha": "cred-a",
	})

	if report.Total != 3 || report.SuccessCount != 2 || report.FailCount != 1 {
		t.Fatalf("report = %d/%d/%d, want 3 total, 2 ok, 1 failed", report.Total, report.SuccessCount, report.FailCount)
	}
	for i, want := range []string{"alpha", "bad", "zeta"} {
		if report.Results[i].AccountID != want {
			t.Errorf("Results[%d] = %s, want %s (sorted order)", i, report.Results[i].AccountID, want)
		}
	}
	if len(fleet.imported) != 2 || fleet.imported[0] != "alpha=cred-a" || fleet.imported[1] != "zeta=cred-z" {
		t.Errorf("imported = %v, want the two good credentials in order", fleet.imported)
	}
}
