package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "stats.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tr, err := NewTracker(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tr
}

func TestTracker_BucketsFollowClock(t *testing.T) {
	tr := newTestTracker(t)

	day1 := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	tr.now = func() time.Time { return day1 }
	for i := 0; i < 3; i++ {
		if err := tr.RecordSent("acc"); err != nil {
			t.Fatalf("RecordSent: %v", err)
		}
	}
	tr.now = func() time.Time { return day2 }
	if err := tr.RecordSent("acc"); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}

	a := tr.Account("acc")
	if a == nil {
		t.Fatal("Account returned nil")
	}
	if a.TotalSent != 4 {
		t.Errorf("TotalSent = %d, want 4", a.TotalSent)
	}
	if a.Daily["2026-08-28"] != 3 || a.Daily["2026-08-29"] != 1 {
		t.Errorf("Daily = %v, want 3 on 08-28 and 1 on 08-29", a.Daily)
	}
	// Both days fall in ISO week 35 of 2026.
	if a.Weekly["2026-W35"] != 4 {
		t.Errorf("Weekly = %v, want 4 in 2026-W35", a.Weekly)
	}
}

func TestTracker_TrendIncludesQuietDays(t *testing.T) {
	tr := newTestTracker(t)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now.AddDate(0, 0, -2) }
	if err := tr.RecordSent("acc"); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}
	tr.now = func() time.Time { return now }
	if err := tr.RecordSent("acc"); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}

	trend := tr.Trend(3)
	if len(trend) != 3 {
		t.Fatalf("Trend len = %d, want 3", len(trend))
	}
	want := []DayTotal{
		{Date: "2026-08-28", Sent: 1},
		{Date: "2026-08-29", Sent: 0},
		{Date: "2026-08-30", Sent: 1},
	}
	for i, w := range want {
		if trend[i] != w {
			t.Errorf("Trend[%d] = %+v, want %+v", i, trend[i], w)
		}
	}
}

func TestTracker_TopAccountsRanking(t *testing.T) {
	tr := newTestTracker(t)

	counts := map[string]int{"a": 2, "b": 5, "c": 2, "d": 1}
	for id, n := range counts {
		for i := 0; i < n; i++ {
			if err := tr.RecordSent(id); err != nil {
				t.Fatalf("RecordSent: %v", err)
			}
		}
	}

	top := tr.TopAccounts(3)
	if len(top) != 3 {
		t.Fatalf("TopAccounts len = %d, want 3", len(top))
	}
	if top[0].AccountID != "b" || top[0].Sent != 5 {
		t.Errorf("top[0] = %+v, want b/5", top[0])
	}
	// Ties break by account id.
	if top[1].AccountID != "a" || top[2].AccountID != "c" {
		t.Errorf("tie order = %s,%s, want a,c", top[1].AccountID, top[2].AccountID)
	}
}

func TestTracker_PruneDropsOldBuckets(t *testing.T) {
	tr := newTestTracker(t)

	old := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return old }
	if err := tr.RecordSent("acc"); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}

	tr.now = func() time.Time { return time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC) }
	if err := tr.RecordSent("acc"); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}

	a := tr.Account("acc")
	if _, ok := a.Daily["2026-06-01"]; ok {
		t.Error("daily bucket older than retention survived")
	}
	if a.TotalSent != 2 {
		t.Errorf("TotalSent = %d, want 2 (totals never pruned)", a.TotalSent)
	}
}

func TestTracker_SummarizeAndFailures(t *testing.T) {
	tr := newTestTracker(t)

	if err := tr.RecordSent("a"); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}
	if err := tr.RecordFailed("a"); err != nil {
		t.Fatalf("RecordFailed: %v", err)
	}
	if err := tr.RecordSent("b"); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}

	s := tr.Summarize()
	if s.TotalSent != 2 || s.TotalFailed != 1 {
		t.Errorf("totals = %d/%d, want 2/1", s.TotalSent, s.TotalFailed)
	}
	if len(s.Accounts) != 2 {
		t.Errorf("accounts = %d, want 2", len(s.Accounts))
	}
}

func TestTracker_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "stats.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tr, err := NewTracker(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tr.RecordSent("acc"); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}

	store2, err := storage.NewStore(filepath.Join(dir, "stats.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tr2, err := NewTracker(store2, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTracker reload: %v", err)
	}
	if a := tr2.Account("acc"); a == nil || a.TotalSent != 1 {
		t.Fatalf("Account after reload = %+v, want TotalSent 1", a)
	}
}
