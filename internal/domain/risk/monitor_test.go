package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeChecker struct {
	ids   []string
	fails map[string]error
}

func (f *fakeChecker) AccountIDs() []string { return f.ids }

func (f *fakeChecker) CheckHealth(_ context.Context, accountID string) error {
	return f.fails[accountID]
}

type fakeSweeper struct {
	calls int
}

func (f *fakeSweeper) SweepProxies(context.Context) { f.calls++ }

func TestMonitor_PassRecordsOutcomes(t *testing.T) {
	ledger := newTestLedger(t)
	checker := &fakeChecker{
		ids: []string{"good", "bad"},
		fails: map[string]error{
			"bad": errors.New("account restricted"),
		},
	}
	sweeper := &fakeSweeper{}

	m := &Monitor{
		ledger:  ledger,
		checker: checker,
		sweeper: sweeper,
		logger:  zerolog.Nop(),
	}
	m.pass(context.Background())

	if got := ledger.Level("good"); got != LevelLow {
		t.Errorf("good level = %q, want low", got)
	}
	if got := ledger.Level("bad"); got != LevelBanned {
		t.Errorf("bad level = %q, want banned", got)
	}
	if sweeper.calls != 1 {
		t.Errorf("sweeper calls = %d, want 1", sweeper.calls)
	}
	good := ledger.Get("good")
	if good.LastCheck == nil {
		t.Error("healthy check did not stamp LastCheck")
	}
	if good.ProxyResponseTime <= 0 {
		t.Errorf("ProxyResponseTime = %v, want the check round-trip recorded", good.ProxyResponseTime)
	}
}

func TestMonitor_PassStopsOnCancel(t *testing.T) {
	ledger := newTestLedger(t)
	checker := &fakeChecker{ids: []string{"a", "b"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Monitor{ledger: ledger, checker: checker, logger: zerolog.Nop()}
	m.pass(ctx)

	if got := ledger.Get("a"); got != nil {
		t.Fatal("pass recorded outcomes after cancellation")
	}
}
