package database

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/hjoelr/trading-signals/internal/logging"
)

type DB struct {
	DB *bolt.DB
}

func NewFromEnv(ctx context.Context, config *Config) (*DB, error) {
	logger := logging.FromContext(ctx)
	logger.Infof("opening db file %s", config.FileName)

	db, err := bolt.Open(config.FileName, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	return &DB{DB: db}, nil
}

func (db *DB) Close(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.Infof("closing db")

	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("error closing db: %w", err)
	}

	return nil
}
