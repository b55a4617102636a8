package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"go.opencensus.io/stats/view"

	"github.com/hjoelr/trading-signals/internal/buildinfo"
	"github.com/hjoelr/trading-signals/internal/collect"
	signals "github.com/hjoelr/trading-signals/internal/config"
	"github.com/hjoelr/trading-signals/internal/forecast"
	"github.com/hjoelr/trading-signals/internal/logging"
	"github.com/hjoelr/trading-signals/internal/o11y"
	"github.com/hjoelr/trading-signals/internal/server"
	"github.com/hjoelr/trading-signals/internal/setup"
	"github.com/hjoelr/trading-signals/internal/shutdown"
)

func main() {
	_, _ = fmt.Fprint(os.Stdout, buildinfo.Graffiti)
	_, _ = fmt.Fprintf(
		os.Stdout,
		"%s: %s, %s\n",
		buildinfo.Info.Name(),
		buildinfo.Info.Time(),
		buildinfo.Info.Tag(),
	)

	ctx, done := shutdown.New()
	logger := logging.FromContext(ctx)
	if err := run(ctx, done); err != nil {
		logger.Fatal(err)
	}

	defer done()
}

func run(ctx context.Context, cancel func()) error {
	var (
		shutdownCh    chan error
		shutdownCount = 2
	)
	config := signals.Config{}
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer env.Close(ctx)

	if config.SvcModeType == signals.SvcModeTypeScrape {
		shutdownCount++
	}

	shutdownCh = make(chan error, shutdownCount)
	notifier, err := env.ProvideNotifier()(shutdownCh)
	if err != nil {
		return fmt.Errorf("notifier provider function error: %w", err)
	}
	dispatcher, err := env.ProvideDispatcher()(notifier, shutdownCh)
	if err != nil {
		return fmt.Errorf("dispatcher provider function error: %w", err)
	}

	if config.SvcModeType == signals.SvcModeTypeScrape {
		scrapper, err := env.ProvideScrapper()(dispatcher, shutdownCh)
		if err != nil {
			return fmt.Errorf("scrapperCaller: %w", err)
		}
		if err := scrapper.Run(ctx); err != nil {
			return fmt.Errorf("scrapperRun: %w", err)
		}
	} else if err := dispatcher.Run(ctx); err != nil {
		return fmt.Errorf("dispatcher.Run: %w", err)
	}

	srv, err := server.New(config.SrvAddr)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	if err := o11y.RegisterViews(); err != nil {
		return fmt.Errorf("o11y.RegisterViews: %w", err)
	}
	exporter, err := o11y.NewPrometheusExporter("signals")
	if err != nil {
		return fmt.Errorf("o11y.NewPrometheusExporter: %w", err)
	}
	view.RegisterExporter(exporter)

	mux := http.NewServeMux()

	forecastHandler, err := forecast.NewHandler(&config.Forecast, dispatcher)
	if err != nil {
		return fmt.Errorf("forecast.NewHandler: %w", err)
	}

	mux.Handle("/forecast", forecastHandler)
	mux.Handle("/health", server.HandleHealth(ctx))
	mux.Handle("/metrics", exporter)

	if config.SvcModeType == signals.SvcModeTypeCollect {
		collectHandler, err := collect.NewHandler(&config.Collect, dispatcher)
		if err != nil {
			return fmt.Errorf("collect.NewHandler: %w", err)
		}
		mux.Handle("/collect", collectHandler)
	}

	go func() {
		if err := srv.ServeHTTPHandler(ctx, mux); err != nil {
			cancel()
		}
	}()

	go func() {
		if err := http.ListenAndServe("0.0.0.0:8080", nil); err != nil {
			cancel()
		}
	}()

	return <-shutdownCh
}
