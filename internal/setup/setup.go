package setup

import (
	"context"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/hjoelr/trading-signals/internal/alert"
	"github.com/hjoelr/trading-signals/internal/database"
	"github.com/hjoelr/trading-signals/internal/dispatcher"
	"github.com/hjoelr/trading-signals/internal/logging"
	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/internal/predictor/olstrend"
	"github.com/hjoelr/trading-signals/internal/scrape"
	"github.com/hjoelr/trading-signals/internal/snapshot"
	"github.com/hjoelr/trading-signals/internal/srvenv"
)

const (
	SvcModeScrape  string = "SCRAPE"
	SvcModeCollect string = "COLLECT"
)

type SvcModeConfigProvider interface {
	SvcMode() string
}

type DispatcherConfigProvider interface {
	DispatcherConfig() *dispatcher.Config
}

type NotifierConfigProvider interface {
	NotifyConfig() *alert.Config
}

type ScrapeConfigProvider interface {
	ScrapeConfig() *scrape.Config
}

type PredictorConfigProvider interface {
	PredictConfig() *predictor.Config
	PredictType() predictor.AlgType
}

type DatabaseConfigProvider interface {
	DatabaseConfig() *database.Config
}

type SnapshotConfigProvider interface {
	SnapshotConfig() *snapshot.Config
}

// Setup reads the environment into the given config and assembles the shared
// server environment from whichever config surfaces the concrete type
// provides.
func Setup(ctx context.Context, config interface{}) (*srvenv.SrvEnv, error) {
	logger := logging.FromContext(ctx)
	var serverEnvOpts []srvenv.Option
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var (
		db                  *database.DB
		snapshotPublisher   *snapshot.Publisher
		predictorProvideFn  predictor.ProvideFn
		notifierProvideFn   alert.ProvideFn
		dispatcherProvideFn dispatcher.ProvideFn
		scrapperProvideFn   scrape.ProvideFn
	)
	if dbConfigProvider, ok := config.(DatabaseConfigProvider); ok {
		logger.Info("Configuring database")
		dbFromEnv, err := database.NewFromEnv(ctx, dbConfigProvider.DatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		db = dbFromEnv
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDatabase(db))
	}

	if snapshotConfigProvider, ok := config.(SnapshotConfigProvider); ok {
		cfg := snapshotConfigProvider.SnapshotConfig()
		if cfg.Enabled() {
			logger.Info("Configuring snapshot publisher")
			publisher, err := snapshot.New(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("unable to connect to snapshot storage: %w", err)
			}
			snapshotPublisher = publisher
			serverEnvOpts = append(serverEnvOpts, srvenv.WithSnapshot(snapshotPublisher))
		}
	}

	if notifyConfigProvider, ok := config.(NotifierConfigProvider); ok {
		logger.Info("Configuring notifier")
		provideFn, err := ProvideNotifierFor(notifyConfigProvider, db)
		if err != nil {
			return nil, fmt.Errorf("unable create notifier provide function: %w", err)
		}
		notifierProvideFn = provideFn
		serverEnvOpts = append(serverEnvOpts, srvenv.WithNotifier(notifierProvideFn))
	}

	if predictConfigProvider, ok := config.(PredictorConfigProvider); ok {
		logger.Info("Configuring predictor")
		dispatcherConfigProvider, ok := config.(DispatcherConfigProvider)
		if !ok {
			return nil, fmt.Errorf("unable read dispatcher config")
		}
		provideFn, err := ProvidePredictorFor(predictConfigProvider.PredictConfig(), dispatcherConfigProvider.DispatcherConfig())
		if err != nil {
			return nil, fmt.Errorf("unable create predictor provide function: %w", err)
		}
		predictorProvideFn = provideFn
		serverEnvOpts = append(serverEnvOpts, srvenv.WithPredictor(predictorProvideFn))
	}

	if dispatcherConfigProvider, ok := config.(DispatcherConfigProvider); ok {
		logger.Info("Configuring dispatcher")
		provideFn, err := ProvideDispatcherFor(dispatcherConfigProvider, predictorProvideFn, db, snapshotPublisher)
		if err != nil {
			return nil, fmt.Errorf("unable create dispatcher provide function: %w", err)
		}
		dispatcherProvideFn = provideFn
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDispatcher(dispatcherProvideFn))
	}

	if svcModeConfigProvider, ok := config.(SvcModeConfigProvider); ok && svcModeConfigProvider.SvcMode() == SvcModeScrape {
		if scrapeConfigProvider, ok := config.(ScrapeConfigProvider); ok {
			logger.Info("Configuring scrapper")
			provideFn, err := ProvideScrapperFor(scrapeConfigProvider)
			if err != nil {
				return nil, fmt.Errorf("unable create scrapper provide function: %w", err)
			}
			scrapperProvideFn = provideFn
			serverEnvOpts = append(serverEnvOpts, srvenv.WithScrapper(scrapperProvideFn))
		}
	}
	return srvenv.New(serverEnvOpts...), nil
}

func ProvideScrapperFor(provider ScrapeConfigProvider) (scrape.ProvideFn, error) {
	cfg := provider.ScrapeConfig()
	return func(collector dispatcher.Manager, shutdownCh chan<- error) (scrape.Manager, error) {
		return scrape.New(
			collector,
			shutdownCh,
			scrape.WithInterval(cfg.Interval),
			scrape.WithRequestTimeout(cfg.RequestTimeout),
			scrape.WithMaxConcurrentRequest(cfg.MaxConcurrentRequest),
			scrape.WithTargetUrls(cfg.Targets),
		)
	}, nil
}

func ProvideNotifierFor(provider NotifierConfigProvider, db *database.DB) (alert.ProvideFn, error) {
	cfg := provider.NotifyConfig()
	return func(shutdownCh chan<- error) (alert.Manager, error) {
		return alert.New(
			db,
			shutdownCh,
			alert.WithAllowAlerts(cfg.AllowAlerts),
			alert.WithMaxConcurrentRequest(cfg.MaxConcurrentRequest),
			alert.WithInterval(cfg.Interval),
			alert.WithTargets(cfg.Targets),
		)
	}, nil
}

func ProvideDispatcherFor(
	provider DispatcherConfigProvider,
	providePredictFn predictor.ProvideFn,
	db *database.DB,
	snapshotPublisher *snapshot.Publisher,
) (dispatcher.ProvideFn, error) {
	cfg := provider.DispatcherConfig()
	return func(notifier alert.Manager, shutdownCh chan<- error) (dispatcher.Manager, error) {
		opts := []dispatcher.Option{
			dispatcher.WithRebuildDBTime(cfg.RebuildDBTime),
			dispatcher.WithAllowAppendData(cfg.AllowAppendData),
			dispatcher.WithAllowAppendSignal(cfg.AllowAppendSignal),
			dispatcher.WithMaxItemsStored(cfg.MaxItemsStored),
			dispatcher.WithMaxStorageTime(cfg.MaxStorageTime),
			dispatcher.WithSkipItems(cfg.SkipItems),
			dispatcher.WithDBFlushSize(cfg.DBFlushSize),
			dispatcher.WithDBFlushTime(cfg.DBFlushTime),
		}
		if snapshotPublisher != nil {
			opts = append(opts, dispatcher.WithSnapshot(snapshotPublisher))
		}
		return dispatcher.New(db, providePredictFn, notifier, shutdownCh, opts...)
	}, nil
}

func ProvidePredictorFor(cfg *predictor.Config, dispatcherCfg *dispatcher.Config) (predictor.ProvideFn, error) {
	switch cfg.PredictorType() {
	case predictor.AlgTypeOLSTrend:
		cfgTrend := olstrend.Config{}
		if err := envconfig.Process("", &cfgTrend); err != nil {
			return nil, fmt.Errorf("error loading environment variables: %w", err)
		}
		return func() (predictor.Predictor, error) {
			t, err := olstrend.New(
				olstrend.WithSkipItems(cfgTrend.SkipItems),
				olstrend.WithBandWidth(cfgTrend.BandWidth),
				olstrend.WithMaxItems(dispatcherCfg.MaxItemsStored),
			)
			if err != nil {
				return nil, fmt.Errorf("unable create trend instance: %w", err)
			}
			return t, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown predictor type: %s", cfg.PredictorType())
	}
}
