package account

import (
	"context"
	"path/filepath"

	"go.uber.org/fx"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// Module wires the account registry and the connection pool with a
// module-private store backed by accounts.json. Live connections are torn
// down through the fx lifecycle on shutdown.
var Module = fx.Module("account",
	fx.Provide(
		fx.Private,
		newStore,
	),
	fx.Provide(
		NewRegistry,
		NewPool,
	),
	fx.Invoke(closeOnShutdown),
)

func newStore(cfg *config.StorageConfig) (*storage.Store, error) {
	return storage.NewStore(filepath.Join(cfg.DataDir, "accounts.json"))
}

func closeOnShutdown(lc fx.Lifecycle, pool *Pool) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.DisconnectAll(ctx)
			return nil
		},
	})
}
