package schedule

import (
	"context"
	"path/filepath"

	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// Module wires the scheduler with a module-private store backed by
// schedules.json. The tick loop runs through the fx lifecycle.
var Module = fx.Module("schedule",
	fx.Provide(
		fx.Private,
		newStore,
	),
	fx.Provide(
		NewScheduler,
	),
	fx.Invoke(runScheduler),
)

func newStore(cfg *config.StorageConfig) (*storage.Store, error) {
	return storage.NewStore(filepath.Join(cfg.DataDir, "schedules.json"))
}

func runScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
