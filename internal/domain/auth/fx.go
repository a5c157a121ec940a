package auth

import (
	"go.uber.org/fx"
)

// Module wires the auth manager.
var Module = fx.Module("auth",
	fx.Provide(
		NewManager,
	),
)
