package proxy

import (
	"path/filepath"

	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// Module wires the proxy registry and tester with a module-private store
// backed by proxies.json.
var Module = fx.Module("proxy",
	fx.Provide(
		fx.Private,
		newStore,
	),
	fx.Provide(
		NewRegistry,
		NewTester,
	),
)

func newStore(cfg *config.StorageConfig) (*storage.Store, error) {
	return storage.NewStore(filepath.Join(cfg.DataDir, "proxies.json"))
}
