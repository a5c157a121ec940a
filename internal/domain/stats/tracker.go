// Package stats aggregates per-account message delivery counters into daily
// and weekly buckets for reporting.
package stats

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// retentionDays bounds how many daily buckets are kept per account.
const retentionDays = 30

// AccountStats is one account's delivery counters.
type AccountStats struct {
	TotalSent   int            `json:"total_sent"`
	TotalFailed int            `json:"total_failed"`
	Daily       map[string]int `json:"daily,omitempty"`  // YYYY-MM-DD -> sent
	Weekly      map[string]int `json:"weekly,omitempty"` // YYYY-Www -> sent
	LastSent    *time.Time     `json:"last_sent,omitempty"`
}

// Summary is the fleet-wide rollup.
type Summary struct {
	TotalSent   int                      `json:"total_sent"`
	TotalFailed int                      `json:"total_failed"`
	Accounts    map[string]*AccountStats `json:"accounts"`
}

// TopEntry is one row of the top-accounts ranking.
type TopEntry struct {
	AccountID string `json:"account_id"`
	Sent      int    `json:"sent"`
}

// DayTotal is the fleet-wide sent count of one calendar day.
type DayTotal struct {
	Date string `json:"date"`
	Sent int    `json:"sent"`
}

// Tracker records delivery outcomes.
type Tracker struct {
	store *storage.Store

	mu       sync.RWMutex
	accounts map[string]*AccountStats

	now    func() time.Time
	logger zerolog.Logger
}

// NewTracker loads the tracker from its backing store.
func NewTracker(store *storage.Store, logger zerolog.Logger) (*Tracker, error) {
	t := &Tracker{
		store:    store,
		accounts: make(map[string]*AccountStats),
		now:      time.Now,
		logger:   logger.With().Str("component", "stats_tracker").Logger(),
	}
	if err := store.Load(&t.accounts); err != nil {
		return nil, err
	}
	return t, nil
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (t *Tracker) entry(accountID string) *AccountStats {
	a, ok := t.accounts[accountID]
	if !ok {
		a = &AccountStats{
			Daily:  make(map[string]int),
			Weekly: make(map[string]int),
		}
		t.accounts[accountID] = a
	}
	if a.Daily == nil {
		a.Daily = make(map[string]int)
	}
	if a.Weekly == nil {
		a.Weekly = make(map[string]int)
	}
	return a
}

// RecordSent notes one delivered message.
func (t *Tracker) RecordSent(accountID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	a := t.entry(accountID)
	a.TotalSent++
	a.Daily[dayKey(now)]++
	a.Weekly[weekKey(now)]++
	a.LastSent = &now
	t.prune(a, now)

	return t.store.Save(t.accounts)
}

// RecordFailed notes one failed delivery.
func (t *Tracker) RecordFailed(accountID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entry(accountID).TotalFailed++
	return t.store.Save(t.accounts)
}

// prune drops daily buckets older than the retention window and their
// corresponding weekly buckets.
func (t *Tracker) prune(a *AccountStats, now time.Time) {
	cutoffDay := dayKey(now.AddDate(0, 0, -retentionDays))
	for day := range a.Daily {
		if day < cutoffDay {
			delete(a.Daily, day)
		}
	}
	cutoffWeek := weekKey(now.AddDate(0, 0, -retentionDays))
	for week := range a.Weekly {
		if week < cutoffWeek {
			delete(a.Weekly, week)
		}
	}
}

// Account returns a copy of one account's counters, or nil when untracked.
func (t *Tracker) Account(accountID string) *AccountStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	a, ok := t.accounts[accountID]
	if !ok {
		return nil
	}
	return copyStats(a)
}

// Summarize rolls up every account's counters.
func (t *Tracker) Summarize() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{Accounts: make(map[string]*AccountStats, len(t.accounts))}
	for id, a := range t.accounts {
		s.TotalSent += a.TotalSent
		s.TotalFailed += a.TotalFailed
		s.Accounts[id] = copyStats(a)
	}
	return s
}

// TopAccounts ranks accounts by total sent, descending, ties broken by id.
func (t *Tracker) TopAccounts(limit int) []TopEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TopEntry, 0, len(t.accounts))
	for id, a := range t.accounts {
		out = append(out, TopEntry{AccountID: id, Sent: a.TotalSent})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sent != out[j].Sent {
			return out[i].Sent > out[j].Sent
		}
		return out[i].AccountID < out[j].AccountID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Trend returns fleet-wide daily totals for the last days calendar days,
// oldest first, with zero rows for quiet days.
func (t *Tracker) Trend(days int) []DayTotal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if days <= 0 {
		days = 7
	}

	now := t.now()
	out := make([]DayTotal, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := dayKey(now.AddDate(0, 0, -i))
		total := 0
		for _, a := range t.accounts {
			total += a.Daily[day]
		}
		out = append(out, DayTotal{Date: day, Sent: total})
	}
	return out
}

// Forget drops an account's counters, used when the account is removed.
func (t *Tracker) Forget(accountID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.accounts[accountID]; !ok {
		return nil
	}
	delete(t.accounts, accountID)
	return t.store.Save(t.accounts)
}

func copyStats(a *AccountStats) *AccountStats {
	cp := &AccountStats{
		TotalSent:   a.TotalSent,
		TotalFailed: a.TotalFailed,
		Daily:       make(map[string]int, len(a.Daily)),
		Weekly:      make(map[string]int, len(a.Weekly)),
	}
	for k, v := range a.Daily {
		cp.Daily[k] = v
	}
	for k, v := range a.Weekly {
		cp.Weekly[k] = v
	}
	if a.LastSent != nil {
		ls := *a.LastSent
		cp.LastSent = &ls
	}
	return cp
}
