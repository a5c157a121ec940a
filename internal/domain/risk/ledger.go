// Package risk tracks per-account login and delivery outcomes and classifies each account
// into a risk level used to gate batch work and surface unhealthy accounts.
package risk

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// Risk levels, ordered from healthiest to worst.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
	LevelBanned = "banned"
)

// Classification thresholds. First match wins, checked worst-first.
const (
	highConsecutiveFails   = 5
	highFailRate           = 0.8
	mediumConsecutiveFails = 2
	mediumFailRate         = 0.5

	// recentFailureWindow bounds the failure history kept per account.
	recentFailureWindow = 10
)

// banMarkers are matched case-insensitively against the two most recent
// failure messages. A hit is terminal: the account stays banned no matter
// how many logins succeed afterwards.
var banMarkers = []string{"banned", "deactivated", "flood", "restricted"}

// FailureRecord is one recorded login failure.
type FailureRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// AccountRisk is the persisted risk state of one account.
type AccountRisk struct {
	AccountID        string          `json:"account_id"`
	Level            string          `json:"level"`
	ConsecutiveFails int             `json:"consecutive_fails"`
	TotalLogins      int             `json:"total_logins"`
	FailedLogins     int             `json:"failed_logins"`
	LoginFailRate    float64         `json:"login_fail_rate"`
	MessagesSent     int             `json:"message_success_count"`
	MessagesFailed   int             `json:"message_fail_count"`
	RecentFailures   []FailureRecord `json:"recent_failures,omitempty"`

	// ProxyResponseTime is the smoothed proxied round-trip of health probes,
	// in seconds. Each reading is averaged against the previous value.
	ProxyResponseTime float64    `json:"proxy_response_time,omitempty"`
	LastCheck         *time.Time `json:"last_check,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Ledger records login outcomes and derives risk levels.
type Ledger struct {
	store *storage.Store

	mu       sync.RWMutex
	accounts map[string]*AccountRisk

	logger zerolog.Logger
}

// NewLedger loads the ledger from its backing store.
func NewLedger(store *storage.Store, logger zerolog.Logger) (*Ledger, error) {
	l := &Ledger{
		store:    store,
		accounts: make(map[string]*AccountRisk),
		logger:   logger.With().Str("component", "risk_ledger").Logger(),
	}
	if err := store.Load(&l.accounts); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) save() error {
	return l.store.Save(l.accounts)
}

func (l *Ledger) entry(accountID string) *AccountRisk {
	a, ok := l.accounts[accountID]
	if !ok {
		a = &AccountRisk{AccountID: accountID, Level: LevelLow}
		l.accounts[accountID] = a
	}
	return a
}

// touch stamps the bookkeeping timestamps. Caller holds the write lock.
func (l *Ledger) touch(a *AccountRisk) {
	now := time.Now()
	a.LastCheck = &now
	a.UpdatedAt = now
}

// recordFailureLocked folds one failure message into the shared streak and
// ban-scan state. Caller holds the write lock.
func (l *Ledger) recordFailureLocked(a *AccountRisk, errText string) {
	a.ConsecutiveFails++
	a.RecentFailures = append(a.RecentFailures, FailureRecord{
		Timestamp: time.Now(),
		Error:     errText,
	})
	if len(a.RecentFailures) > recentFailureWindow {
		a.RecentFailures = a.RecentFailures[len(a.RecentFailures)-recentFailureWindow:]
	}
	l.reclassify(a)
	l.touch(a)

	if a.Level == LevelBanned || a.Level == LevelHigh {
		l.logger.Warn().
			Str("account_id", a.AccountID).
			Str("level", a.Level).
			Int("consecutive_fails", a.ConsecutiveFails).
			Msg("account risk elevated")
	}
}

// RecordSuccess notes a successful login or health check.
func (l *Ledger) RecordSuccess(accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.entry(accountID)
	a.ConsecutiveFails = 0
	a.TotalLogins++
	l.reclassify(a)
	l.touch(a)
	return l.save()
}

// RecordFailure notes a failed login or health check with its error text.
func (l *Ledger) RecordFailure(accountID, errText string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.entry(accountID)
	a.TotalLogins++
	a.FailedLogins++
	l.recordFailureLocked(a, errText)
	return l.save()
}

// RecordMessageSuccess notes one delivered message. Like a login success it
// resets the failure streak.
func (l *Ledger) RecordMessageSuccess(accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.entry(accountID)
	a.MessagesSent++
	a.ConsecutiveFails = 0
	l.reclassify(a)
	l.touch(a)
	return l.save()
}

// RecordMessageFailure notes one failed delivery. The error text runs through
// the same ban scan as login failures, so a flood or ban answer on the send
// path flags the account just as a refused login would.
func (l *Ledger) RecordMessageFailure(accountID, errText string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.entry(accountID)
	a.MessagesFailed++
	l.recordFailureLocked(a, errText)
	return l.save()
}

// RecordProxyResponse folds a health-probe round trip, in seconds, into the
// account's smoothed proxy response time.
func (l *Ledger) RecordProxyResponse(accountID string, seconds float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.entry(accountID)
	if a.ProxyResponseTime == 0 {
		a.ProxyResponseTime = seconds
	} else {
		a.ProxyResponseTime = (a.ProxyResponseTime + seconds) / 2
	}
	l.touch(a)
	return l.save()
}

// reclassify recomputes Level. Caller holds the write lock.
func (l *Ledger) reclassify(a *AccountRisk) {
	if a.TotalLogins > 0 {
		a.LoginFailRate = float64(a.FailedLogins) / float64(a.TotalLogins)
	}

	if a.Level == LevelBanned {
		return
	}
	if l.banDetected(a) {
		a.Level = LevelBanned
		return
	}

	switch {
	case a.ConsecutiveFails >= highConsecutiveFails || a.LoginFailRate >= highFailRate:
		a.Level = LevelHigh
	case a.ConsecutiveFails >= mediumConsecutiveFails || a.LoginFailRate >= mediumFailRate:
		a.Level = LevelMedium
	default:
		a.Level = LevelLow
	}
}

// banDetected scans the two most recent failure messages for ban markers.
func (l *Ledger) banDetected(a *AccountRisk) bool {
	n := len(a.RecentFailures)
	if n == 0 {
		return false
	}
	from := n - 2
	if from < 0 {
		from = 0
	}
	var sb strings.Builder
	for _, rec := range a.RecentFailures[from:] {
		sb.WriteString(rec.Error)
		sb.WriteString(" ")
	}
	haystack := strings.ToLower(sb.String())
	for _, marker := range banMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

// Level returns the current risk level for an account. Unknown accounts are
// low risk.
func (l *Ledger) Level(accountID string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.accounts[accountID]
	if !ok {
		return LevelLow
	}
	return a.Level
}

// Get returns a copy of one account's risk state, or nil when untracked.
func (l *Ledger) Get(accountID string) *AccountRisk {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.accounts[accountID]
	if !ok {
		return nil
	}
	cp := *a
	cp.RecentFailures = append([]FailureRecord(nil), a.RecentFailures...)
	return &cp
}

// RiskAccounts returns accounts at medium risk or worse, worst first and
// by id within a level.
func (l *Ledger) RiskAccounts() []AccountRisk {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []AccountRisk
	for _, a := range l.accounts {
		if a.Level == LevelLow {
			continue
		}
		cp := *a
		cp.RecentFailures = append([]FailureRecord(nil), a.RecentFailures...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := levelRank(out[i].Level), levelRank(out[j].Level)
		if ri != rj {
			return ri > rj
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out
}

// Forget drops an account's risk state, used when the account is removed.
func (l *Ledger) Forget(accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[accountID]; !ok {
		return nil
	}
	delete(l.accounts, accountID)
	return l.save()
}

func levelRank(level string) int {
	switch level {
	case LevelBanned:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}
