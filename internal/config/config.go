package signals

import (
	"github.com/hjoelr/trading-signals/internal/alert"
	"github.com/hjoelr/trading-signals/internal/collect"
	"github.com/hjoelr/trading-signals/internal/database"
	"github.com/hjoelr/trading-signals/internal/dispatcher"
	"github.com/hjoelr/trading-signals/internal/forecast"
	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/internal/scrape"
	"github.com/hjoelr/trading-signals/internal/setup"
	"github.com/hjoelr/trading-signals/internal/snapshot"
)

var (
	_ setup.SvcModeConfigProvider    = (*Config)(nil)
	_ setup.DispatcherConfigProvider = (*Config)(nil)
	_ setup.DatabaseConfigProvider   = (*Config)(nil)
	_ setup.NotifierConfigProvider   = (*Config)(nil)
	_ setup.ScrapeConfigProvider     = (*Config)(nil)
	_ setup.PredictorConfigProvider  = (*Config)(nil)
	_ setup.SnapshotConfigProvider   = (*Config)(nil)
)

const (
	SvcModeTypeCollect = "COLLECT"
	SvcModeTypeScrape  = "SCRAPE"
)

type Config struct {
	SvcModeType string `envconfig:"SIGNALS_SVC_MODE" default:"COLLECT"`
	SrvAddr     string `envconfig:"SIGNALS_ADDR" default:":8787"`
	Dispatcher  dispatcher.Config
	Collect     collect.Config
	Forecast    forecast.Config
	Database    database.Config
	Scrape      scrape.Config
	Predictor   predictor.Config
	Alert       alert.Config
	Snapshot    snapshot.Config
}

func (c Config) SvcMode() string {
	return c.SvcModeType
}

func (c Config) DispatcherConfig() *dispatcher.Config {
	return &c.Dispatcher
}

func (c Config) NotifyConfig() *alert.Config {
	return &c.Alert
}

func (c Config) ScrapeConfig() *scrape.Config {
	return &c.Scrape
}

func (c Config) DatabaseConfig() *database.Config {
	return &c.Database
}

func (c Config) SnapshotConfig() *snapshot.Config {
	return &c.Snapshot
}

func (c Config) PredictType() predictor.AlgType {
	return c.Predictor.Type
}

func (c Config) PredictConfig() *predictor.Config {
	return &c.Predictor
}
