package telegram

import (
	"go.uber.org/fx"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/internal/domain"
)

// Module wires the MTProto layer: one factory for authorized account
// connections and one backend for pending logins.
var Module = fx.Module("telegram",
	fx.Provide(
		NewClientFactory,
		NewLoginBackend,
		func(b *LoginBackend) domain.LoginBackend { return b },
	),
)

// NewClientFactory returns the production client constructor.
func NewClientFactory(logger zerolog.Logger) domain.ClientFactory {
	return func(cfg domain.ClientConfig) (domain.Client, error) {
		return NewClient(cfg, logger)
	}
}
