package srvenv

import (
	"context"

	"github.com/hjoelr/trading-signals/internal/alert"
	"github.com/hjoelr/trading-signals/internal/database"
	"github.com/hjoelr/trading-signals/internal/dispatcher"
	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/internal/scrape"
	"github.com/hjoelr/trading-signals/internal/snapshot"
)

type Option func(*SrvEnv) *SrvEnv

func New(opts ...Option) *SrvEnv {
	env := &SrvEnv{}
	for _, f := range opts {
		env = f(env)
	}

	return env
}

// SrvEnv carries the shared resources and providers assembled during setup.
type SrvEnv struct {
	database   *database.DB
	snapshot   *snapshot.Publisher
	predictor  predictor.ProvideFn
	dispatcher dispatcher.ProvideFn
	notifier   alert.ProvideFn
	scrapper   scrape.ProvideFn
}

func (s *SrvEnv) ProvideScrapper() scrape.ProvideFn {
	return s.scrapper
}

func (s *SrvEnv) ProvideNotifier() alert.ProvideFn {
	return s.notifier
}

func (s *SrvEnv) ProvideDispatcher() dispatcher.ProvideFn {
	return s.dispatcher
}

func (s *SrvEnv) ProvidePredictor() predictor.ProvideFn {
	return s.predictor
}

func (s *SrvEnv) Database() *database.DB {
	return s.database
}

func (s *SrvEnv) Snapshot() *snapshot.Publisher {
	return s.snapshot
}

func WithScrapper(fn scrape.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.scrapper = fn
		return s
	}
}

func WithNotifier(fn alert.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.notifier = fn
		return s
	}
}

func WithDispatcher(fn dispatcher.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.dispatcher = fn
		return s
	}
}

func WithPredictor(fn predictor.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.predictor = fn
		return s
	}
}

func WithDatabase(db *database.DB) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.database = db
		return s
	}
}

func WithSnapshot(p *snapshot.Publisher) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.snapshot = p
		return s
	}
}

func (s *SrvEnv) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if s.snapshot != nil {
		if err := s.snapshot.Close(); err != nil {
			return err
		}
	}
	if s.database != nil {
		return s.database.Close(ctx)
	}
	return nil
}
