package collect

import (
	"time"
)

type Config struct {
	RequestTimeout time.Duration `envconfig:"SIGNALS_COLLECT_REQUEST_TIMEOUT" default:"60s"`
}
