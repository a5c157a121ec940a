package risk

import (
	"context"
	"path/filepath"

	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// Module wires the risk ledger and the health monitor. The monitor runs for
// the lifetime of the app, stopped through the fx lifecycle.
var Module = fx.Module("risk",
	fx.Provide(
		fx.Private,
		newStore,
	),
	fx.Provide(
		NewLedger,
		NewMonitor,
	),
	fx.Invoke(runMonitor),
)

func newStore(cfg *config.StorageConfig) (*storage.Store, error) {
	return storage.NewStore(filepath.Join(cfg.DataDir, "risk.json"))
}

func runMonitor(lc fx.Lifecycle, m *Monitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			m.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			m.Stop()
			return nil
		},
	})
}
