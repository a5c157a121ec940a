package template

import (
	"path/filepath"

	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// Module wires the template manager with a module-private store backed by
// templates.json.
var Module = fx.Module("template",
	fx.Provide(
		fx.Private,
		newStore,
	),
	fx.Provide(
		NewManager,
	),
)

func newStore(cfg *config.StorageConfig) (*storage.Store, error) {
	return storage.NewStore(filepath.Join(cfg.DataDir, "templates.json"))
}
