package risk

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/config"
)

// HealthChecker is the slice of the account pool the monitor needs: the set
// of known accounts and a way to probe each one.
type HealthChecker interface {
	AccountIDs() []string
	CheckHealth(ctx context.Context, accountID string) error
}

// ProxySweeper re-tests stored proxies. Satisfied by the proxy tester.
type ProxySweeper interface {
	SweepProxies(ctx context.Context)
}

// Monitor periodically probes every account and proxy, feeding outcomes into
// the risk ledger.
type Monitor struct {
	cfg     *config.MonitorConfig
	ledger  *Ledger
	checker HealthChecker
	sweeper ProxySweeper
	logger  zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewMonitor(cfg *config.MonitorConfig, ledger *Ledger, checker HealthChecker, sweeper ProxySweeper, logger zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		ledger:  ledger,
		checker: checker,
		sweeper: sweeper,
		logger:  logger.With().Str("component", "health_monitor").Logger(),
	}
}

// Start launches the monitor loop. No-op when monitoring is disabled.
func (m *Monitor) Start() {
	if !m.cfg.Enabled {
		m.logger.Info().Msg("health monitor disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx)
	m.logger.Info().Dur("interval", m.cfg.Interval).Msg("health monitor started")
}

// Stop cancels the loop and waits for the in-flight pass to finish.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		if m.cancel == nil {
			return
		}
		m.cancel()
		<-m.done
		m.logger.Info().Msg("health monitor stopped")
	})
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pass(ctx)
		}
	}
}

// pass probes every account sequentially, then sweeps proxies.
func (m *Monitor) pass(ctx context.Context) {
	for _, accountID := range m.checker.AccountIDs() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := m.checker.CheckHealth(ctx, accountID); err != nil {
			if recErr := m.ledger.RecordFailure(accountID, err.Error()); recErr != nil {
				m.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record health failure")
			}
			m.logger.Warn().Err(err).Str("account_id", accountID).Msg("health check failed")
			continue
		}
		if recErr := m.ledger.RecordSuccess(accountID); recErr != nil {
			m.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record health success")
		}
		if recErr := m.ledger.RecordProxyResponse(accountID, time.Since(start).Seconds()); recErr != nil {
			m.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record probe timing")
		}
	}

	if m.sweeper != nil {
		m.sweeper.SweepProxies(ctx)
	}
}
