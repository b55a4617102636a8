package dispatcher

import (
	"time"
)

type Config struct {
	// Timer for the storage maintenance pass.
	RebuildDBTime time.Duration `envconfig:"SIGNALS_REBUILD_DB_TIME" default:"15s"`
	// Number of leading observations fed into the fit without being
	// checked, so the trend has something to fit against.
	SkipItems int `envconfig:"SIGNALS_SKIP_ITEMS"`
	// Size of the sliding window kept per entity, in memory and in the db.
	MaxItemsStored int `envconfig:"SIGNALS_MAX_ITEMS_STORED" default:"1000"`
	// Maximum retention period for stored observations per entity.
	MaxStorageTime time.Duration `envconfig:"SIGNALS_MAX_STORAGE_TIME" default:"0s"`
	// Buffer size at which the tx executor flushes to disk.
	DBFlushSize int `envconfig:"SIGNALS_DB_FLUSH_SIZE" default:"10"`
	// Interval at which the tx executor flushes regardless of size.
	DBFlushTime time.Duration `envconfig:"SIGNALS_DB_FLUSH_TIME" default:"5s"`
	// Allow feeding processed observations back into the fit.
	AllowAppendData bool `envconfig:"SIGNALS_ALLOW_APPEND_DATA" default:"true"`
	// Allow feeding breakout observations back into the fit.
	AllowAppendSignal bool `envconfig:"SIGNALS_ALLOW_APPEND_SIGNAL" default:"true"`
}
