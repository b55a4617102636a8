package forecast

import "time"

type Config struct {
	RequestTimeout  time.Duration `envconfig:"SIGNALS_FORECAST_REQUEST_TIMEOUT" default:"30s"`
	MaxDataItemsLen int           `envconfig:"SIGNALS_FORECAST_MAX_DATA_ITEMS_LEN" default:"10"`
}
