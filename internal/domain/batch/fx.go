package batch

import (
	"go.uber.org/fx"
)

// Module wires the batch coordinator.
var Module = fx.Module("batch",
	fx.Provide(
		NewCoordinator,
	),
)
