package database

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/hjoelr/trading-signals/internal/alert/model"
	"github.com/hjoelr/trading-signals/internal/database"
)

const (
	alertKeys = "alert:keys:"
	prefix    = "alert:"
)

type FilterFn func(alert model.Alert) bool

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

// DB persists undelivered alert batches so they survive a restart.
type DB struct {
	sDB *database.DB
}

func (db *DB) Store(_ context.Context, alert model.Alert) error {
	bytes, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(prefix + alert.EntityID))
		if err != nil {
			return fmt.Errorf("create alert bucket: %w", err)
		}
		if err := b.Put([]byte(alert.ID.String()), bytes); err != nil {
			return fmt.Errorf("put to alert bucket: %w", err)
		}
		keys, err := tx.CreateBucketIfNotExists([]byte(alertKeys))
		if err != nil {
			return fmt.Errorf("create keys bucket: %w", err)
		}
		if err := keys.Put([]byte(prefix+alert.EntityID), []byte{0x0}); err != nil {
			return fmt.Errorf("put to keys bucket: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) Delete(_ context.Context, alert model.Alert) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + alert.EntityID))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(alert.ID.String()))
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) FindAll(_ context.Context, filter FilterFn) ([]model.Alert, error) {
	var alerts []model.Alert
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		keysBucket := tx.Bucket([]byte(alertKeys))
		if keysBucket == nil {
			return nil
		}
		c := keysBucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			b := tx.Bucket(k)
			if b == nil {
				continue
			}
			ec := b.Cursor()
			for ak, v := ec.First(); ak != nil; ak, v = ec.Next() {
				var a model.Alert
				if err := json.Unmarshal(v, &a); err != nil {
					return fmt.Errorf("alert unmarshal error: %w", err)
				}
				if filter == nil || filter(a) {
					alerts = append(alerts, a)
				}
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return alerts, nil
}
