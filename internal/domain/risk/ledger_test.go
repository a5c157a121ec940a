package risk

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "risk.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	l, err := NewLedger(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

func TestLedger_UnknownAccountIsLow(t *testing.T) {
	l := newTestLedger(t)

	if got := l.Level("nobody"); got != LevelLow {
		t.Fatalf("Level = %q, want low", got)
	}
	if l.Get("nobody") != nil {
		t.Fatal("Get returned state for untracked account")
	}
}

func TestLedger_ConsecutiveFailsEscalate(t *testing.T) {
	l := newTestLedger(t)

	fail := func(n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			if err := l.RecordFailure("acc", "connection refused"); err != nil {
				t.Fatalf("RecordFailure: %v", err)
			}
		}
	}

	fail(1)
	if got := l.Level("acc"); got != LevelHigh {
		// 1/1 logins failed, the fail rate alone puts a fresh account at high.
		t.Fatalf("Level after 1 fail = %q, want high", got)
	}

	// A success resets the streak and dilutes the rate.
	for i := 0; i < 10; i++ {
		if err := l.RecordSuccess("acc"); err != nil {
			t.Fatalf("RecordSuccess: %v", err)
		}
	}
	if got := l.Level("acc"); got != LevelLow {
		t.Fatalf("Level after successes = %q, want low", got)
	}

	fail(2)
	if got := l.Level("acc"); got != LevelMedium {
		t.Fatalf("Level after 2 consecutive fails = %q, want medium", got)
	}

	fail(3)
	if got := l.Level("acc"); got != LevelHigh {
		t.Fatalf("Level after 5 consecutive fails = %q, want high", got)
	}
}

func TestLedger_BanMarkersAreSticky(t *testing.T) {
	l := newTestLedger(t)

	if err := l.RecordFailure("acc", "FLOOD_WAIT_420: too many requests"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if got := l.Level("acc"); got != LevelBanned {
		t.Fatalf("Level = %q, want banned", got)
	}

	// Nothing lifts a ban, not even a long run of successes.
	for i := 0; i < 20; i++ {
		if err := l.RecordSuccess("acc"); err != nil {
			t.Fatalf("RecordSuccess: %v", err)
		}
	}
	if got := l.Level("acc"); got != LevelBanned {
		t.Fatalf("Level after successes = %q, want banned still", got)
	}
}

func TestLedger_BanScanIsCaseInsensitive(t *testing.T) {
	l := newTestLedger(t)

	if err := l.RecordFailure("acc", "account DEACTIVATED by Telegram"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if got := l.Level("acc"); got != LevelBanned {
		t.Fatalf("Level = %q, want banned", got)
	}
}

func TestLedger_BanScanOnlyRecentFailures(t *testing.T) {
	l := newTestLedger(t)

	// The marker is pushed out of the two-message window by later failures.
	if err := l.RecordFailure("acc", "restricted"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if got := l.Level("acc"); got != LevelBanned {
		t.Fatalf("Level = %q, want banned while marker is recent", got)
	}

	l2 := newTestLedger(t)
	for _, msg := range []string{"restricted", "timeout", "timeout"} {
		if err := l2.RecordFailure("acc", msg); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	// The first ban verdict already stuck before the marker aged out.
	if got := l2.Level("acc"); got != LevelBanned {
		t.Fatalf("Level = %q, want banned (sticky)", got)
	}
}

func TestLedger_RiskAccountsOrdering(t *testing.T) {
	l := newTestLedger(t)

	if err := l.RecordFailure("banned-acc", "user banned"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := l.RecordSuccess("medium-acc"); err != nil {
			t.Fatalf("RecordSuccess: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := l.RecordFailure("medium-acc", "timeout"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := l.RecordSuccess("healthy-acc"); err != nil {
			t.Fatalf("RecordSuccess: %v", err)
		}
	}

	got := l.RiskAccounts()
	if len(got) != 2 {
		t.Fatalf("RiskAccounts len = %d, want 2", len(got))
	}
	if got[0].AccountID != "banned-acc" || got[0].Level != LevelBanned {
		t.Fatalf("first = %s/%s, want banned-acc/banned", got[0].AccountID, got[0].Level)
	}
	if got[1].AccountID != "medium-acc" || got[1].Level != LevelMedium {
		t.Fatalf("second = %s/%s, want medium-acc/medium", got[1].AccountID, got[1].Level)
	}
}

func TestLedger_Forget(t *testing.T) {
	l := newTestLedger(t)

	if err := l.RecordFailure("acc", "banned"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := l.Forget("acc"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if got := l.Level("acc"); got != LevelLow {
		t.Fatalf("Level after Forget = %q, want low", got)
	}
}

func TestLedger_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "risk.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	l, err := NewLedger(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	if err := l.RecordFailure("acc", "account banned"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	store2, err := storage.NewStore(filepath.Join(dir, "risk.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	l2, err := NewLedger(store2, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLedger reload: %v", err)
	}
	if got := l2.Level("acc"); got != LevelBanned {
		t.Fatalf("Level after reload = %q, want banned", got)
	}
}

func TestLedger_MessageOutcomesTracked(t *testing.T) {
	l := newTestLedger(t)

	for i := 0; i < 3; i++ {
		if err := l.RecordMessageSuccess("acc"); err != nil {
			t.Fatalf("RecordMessageSuccess: %v", err)
		}
	}
	if err := l.RecordMessageFailure("acc", "PEER_ID_INVALID"); err != nil {
		t.Fatalf("RecordMessageFailure: %v", err)
	}

	rec := l.Get("acc")
	if rec.MessagesSent != 3 || rec.MessagesFailed != 1 {
		t.Errorf("counters = %d/%d, want 3 sent, 1 failed", rec.MessagesSent, rec.MessagesFailed)
	}
	if rec.LastCheck == nil {
		t.Error("LastCheck not stamped")
	}
	if rec.TotalLogins != 0 {
		t.Errorf("TotalLogins = %d, message outcomes must not count as logins", rec.TotalLogins)
	}
}

func TestLedger_MessageBanMarkerFlagsAccount(t *testing.T) {
	l := newTestLedger(t)

	if err := l.RecordMessageFailure("acc", "rpc error: FLOOD_WAIT_300"); err != nil {
		t.Fatalf("RecordMessageFailure: %v", err)
	}
	if got := l.Level("acc"); got != LevelBanned {
		t.Fatalf("Level = %q, want banned after a flood-wait send", got)
	}
}

func TestLedger_ProxyResponseSmoothing(t *testing.T) {
	l := newTestLedger(t)

	if err := l.RecordProxyResponse("acc", 2.0); err != nil {
		t.Fatalf("RecordProxyResponse: %v", err)
	}
	if got := l.Get("acc").ProxyResponseTime; got != 2.0 {
		t.Fatalf("first sample = %v, want 2.0 taken as-is", got)
	}

	if err := l.RecordProxyResponse("acc", 4.0); err != nil {
		t.Fatalf("RecordProxyResponse: %v", err)
	}
	if got := l.Get("acc").ProxyResponseTime; got != 3.0 {
		t.Fatalf("smoothed = %v, want (2.0+4.0)/2", got)
	}
}
