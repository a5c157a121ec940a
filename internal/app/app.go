package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain/account"
	accounthttp "github.com/Conte777/TgFleet/internal/domain/account/delivery/http"
	"github.com/Conte777/TgFleet/internal/domain/auth"
	authhttp "github.com/Conte777/TgFleet/internal/domain/auth/delivery/http"
	"github.com/Conte777/TgFleet/internal/domain/batch"
	batchhttp "github.com/Conte777/TgFleet/internal/domain/batch/delivery/http"
	"github.com/Conte777/TgFleet/internal/domain/proxy"
	proxyhttp "github.com/Conte777/TgFleet/internal/domain/proxy/delivery/http"
	"github.com/Conte777/TgFleet/internal/domain/risk"
	riskhttp "github.com/Conte777/TgFleet/internal/domain/risk/delivery/http"
	"github.com/Conte777/TgFleet/internal/domain/schedule"
	schedulehttp "github.com/Conte777/TgFleet/internal/domain/schedule/delivery/http"
	"github.com/Conte777/TgFleet/internal/domain/stats"
	statshttp "github.com/Conte777/TgFleet/internal/domain/stats/delivery/http"
	"github.com/Conte777/TgFleet/internal/domain/template"
	templatehttp "github.com/Conte777/TgFleet/internal/domain/template/delivery/http"
	"github.com/Conte777/TgFleet/internal/infrastructure"
	"github.com/Conte777/TgFleet/internal/infrastructure/metrics"
)

// gaugeRefreshInterval paces the account gauges exported to Prometheus.
const gaugeRefreshInterval = 15 * time.Second

// CreateApp creates the fx application options
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(
			config.Out,
		),
		infrastructure.Module,
		// Domain modules
		proxy.Module,
		risk.Module,
		stats.Module,
		template.Module,
		account.Module,
		auth.Module,
		batch.Module,
		schedule.Module,
		// HTTP delivery, one module per domain
		proxyhttp.Module,
		riskhttp.Module,
		statshttp.Module,
		templatehttp.Module,
		accounthttp.Module,
		authhttp.Module,
		batchhttp.Module,
		schedulehttp.Module,
		fx.Provide(
			// Cross-module bindings. Each consumer names only the slice of
			// behavior it needs; the concrete types come from sibling modules.
			func(r *proxy.Registry) account.ProxyResolver { return r },
			NewLoginOutcomes,
			func(p *account.Pool) risk.HealthChecker { return p },
			func(t *proxy.Tester) risk.ProxySweeper { return t },
			func(p *account.Pool) batch.Fleet { return p },
			func(m *template.Manager) batch.Renderer { return m },
			func(t *stats.Tracker) batch.DeliveryRecorder { return t },
			func(l *risk.Ledger) batch.RiskGate { return l },
			func(c *batch.Coordinator) schedule.Fanout { return c },
		),
		fx.Invoke(refreshAccountGauges),
	)
}

// loginOutcomes feeds login results into the risk ledger and the login
// metrics in one step.
type loginOutcomes struct {
	ledger  *risk.Ledger
	metrics *metrics.Metrics
}

// NewLoginOutcomes creates the outcome recorder for fx DI
func NewLoginOutcomes(ledger *risk.Ledger, m *metrics.Metrics) account.OutcomeRecorder {
	return &loginOutcomes{ledger: ledger, metrics: m}
}

func (o *loginOutcomes) RecordSuccess(accountID string) error {
	o.metrics.LoginsTotal.Inc()
	return o.ledger.RecordSuccess(accountID)
}

func (o *loginOutcomes) RecordFailure(accountID, errText string) error {
	o.metrics.LoginFailures.WithLabelValues(failureKind(errText)).Inc()
	return o.ledger.RecordFailure(accountID, errText)
}

// failureKind buckets a failure message for the metrics label.
func failureKind(errText string) string {
	text := strings.ToLower(errText)
	switch {
	case strings.Contains(text, "flood"):
		return "flood"
	case strings.Contains(text, "password"):
		return "password"
	case strings.Contains(text, "banned") || strings.Contains(text, "deactivated"):
		return "banned"
	case strings.Contains(text, "timeout") || strings.Contains(text, "deadline"):
		return "timeout"
	default:
		return "other"
	}
}

// refreshAccountGauges keeps the account gauges current for the lifetime of
// the app.
func refreshAccountGauges(lc fx.Lifecycle, pool *account.Pool, m *metrics.Metrics) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(gaugeRefreshInterval)
				defer ticker.Stop()
				for {
					m.TotalAccounts.Set(float64(len(pool.AccountIDs())))
					m.LiveConnections.Set(float64(pool.LiveCount()))
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}
