package infrastructure

import (
	"go.uber.org/fx"

	httpfx "github.com/Conte777/TgFleet/internal/infrastructure/http"
	"github.com/Conte777/TgFleet/internal/infrastructure/logger"
	"github.com/Conte777/TgFleet/internal/infrastructure/metrics"
	"github.com/Conte777/TgFleet/internal/infrastructure/telegram"
)

// Module aggregates all infrastructure modules
var Module = fx.Module("infrastructure",
	logger.Module,
	metrics.Module,
	telegram.Module,
	httpfx.Module,
)
