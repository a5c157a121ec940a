package stats

import (
	"path/filepath"

	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// Module wires the stats tracker with a module-private store backed by
// stats.json.
var Module = fx.Module("stats",
	fx.Provide(
		fx.Private,
		newStore,
	),
	fx.Provide(
		NewTracker,
	),
)

func newStore(cfg *config.StorageConfig) (*storage.Store, error) {
	return storage.NewStore(filepath.Join(cfg.DataDir, "stats.json"))
}
