package config

import "go.uber.org/fx"

// Deps groups the sub-configs handed out to fx consumers so every component
// depends only on the slice of configuration it actually reads.
type Deps struct {
	fx.Out

	Config    *Config
	Telegram  *TelegramConfig
	Storage   *StorageConfig
	Scheduler *SchedulerConfig
	Batch     *BatchConfig
	Monitor   *MonitorConfig
	Logging   *LoggingConfig
	Service   *ServiceConfig
}

// Out loads the configuration and splits it into sub-configs for fx DI.
func Out() (Deps, error) {
	cfg, err := Load()
	if err != nil {
		return Deps{}, err
	}

	return Deps{
		Config:    cfg,
		Telegram:  &cfg.Telegram,
		Storage:   &cfg.Storage,
		Scheduler: &cfg.Scheduler,
		Batch:     &cfg.Batch,
		Monitor:   &cfg.Monitor,
		Logging:   &cfg.Logging,
		Service:   &cfg.Service,
	}, nil
}
