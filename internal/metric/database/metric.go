package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/hjoelr/trading-signals/internal/database"
	"github.com/hjoelr/trading-signals/internal/metric/model"
)

const (
	entityKeys = "entity:keys:"
	prefix     = "metric:"
)

type FilterFn func(metric model.Metric) bool

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

// DB stores metrics one bucket per entity, with a separate keys bucket
// listing the entity buckets that exist.
type DB struct {
	sDB *database.DB
}

func (db *DB) extractKey(key string) string {
	prefixPos := strings.Index(key, prefix)

	return key[prefixPos+len(prefix):]
}

func (db *DB) Keys() ([]string, error) {
	var bucketKeys []string
	err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(entityKeys))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			bucketKeys = append(bucketKeys, db.extractKey(string(k)))
		}
		return nil
	})

	return bucketKeys, err
}

func (db *DB) Store(_ context.Context, metric model.Metric) error {
	bytes, err := json.Marshal(metric)
	if err != nil {
		return err
	}

	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		return putMetric(tx, metric, bytes)
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (db *DB) AppendMany(_ context.Context, metrics []model.Metric) error {
	if err := db.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for i := range metrics {
			bytes, err := json.Marshal(metrics[i])
			if err != nil {
				return err
			}
			if err := putMetric(tx, metrics[i], bytes); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("batch transaction error: %w", err)
	}

	return nil
}

func putMetric(tx *bolt.Tx, metric model.Metric, bytes []byte) error {
	b, err := tx.CreateBucketIfNotExists([]byte(prefix + metric.EntityID))
	if err != nil {
		return fmt.Errorf("create entity bucket: %w", err)
	}
	if err := b.Put([]byte(metric.ID.String()), bytes); err != nil {
		return fmt.Errorf("put to entity bucket: %w", err)
	}
	keys, err := tx.CreateBucketIfNotExists([]byte(entityKeys))
	if err != nil {
		return fmt.Errorf("create keys bucket: %w", err)
	}
	if err := keys.Put([]byte(prefix+metric.EntityID), []byte{0x0}); err != nil {
		return fmt.Errorf("put to keys bucket: %w", err)
	}
	return nil
}

func (db *DB) DeleteMany(_ context.Context, metrics []model.Metric) error {
	if err := db.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for i := range metrics {
			b := tx.Bucket([]byte(prefix + metrics[i].EntityID))
			if b == nil {
				continue
			}
			if err := b.Delete([]byte(metrics[i].ID.String())); err != nil {
				return fmt.Errorf("unable to delete: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("batch transaction error: %w", err)
	}

	return nil
}

func (db *DB) Delete(_ context.Context, metric model.Metric) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + metric.EntityID))
		if b == nil {
			return nil
		}

		return b.Delete([]byte(metric.ID.String()))
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (db *DB) FindAll(_ context.Context, filter FilterFn) ([]model.Metric, error) {
	var metrics []model.Metric
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		keysBucket := tx.Bucket([]byte(entityKeys))
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
			for mk, v := ec.First(); mk != nil; mk, v = ec.Next() {
				var m model.Metric
				if err := json.Unmarshal(v, &m); err != nil {
					return fmt.Errorf("metric unmarshal error: %w", err)
				}
				if filter == nil || filter(m) {
					metrics = append(metrics, m)
				}
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return metrics, nil
}

func (db *DB) CountByEntity(entityID string) (int, error) {
	var length int
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + entityID))
		if b == nil {
			length = 0
			return nil
		}
		stats := b.Stats()
		length = stats.KeyN
		return nil
	}); err != nil {
		return 0, fmt.Errorf("view transaction error: %w", err)
	}

	return length, nil
}

func (db *DB) FindByEntity(entityID string, filter FilterFn) ([]model.Metric, error) {
	var list []model.Metric
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + entityID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var metric model.Metric
			if err := json.Unmarshal(v, &metric); err != nil {
				return fmt.Errorf("metric unmarshal error: %w", err)
			}
			if filter == nil || filter(metric) {
				list = append(list, metric)
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return list, nil
}
