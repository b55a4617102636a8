package alert

import (
	"encoding/json"
	"time"

	"github.com/hjoelr/trading-signals/internal/httputil"
)

type Config struct {
	AllowAlerts          bool          `envconfig:"SIGNALS_ALLOW_ALERTS" default:"true"`
	Targets              Targets       `envconfig:"SIGNALS_ALERT_TARGETS"`
	Interval             time.Duration `envconfig:"SIGNALS_ALERT_INTERVAL" default:"5s"`
	MaxConcurrentRequest int           `envconfig:"SIGNALS_ALERT_MAX_CONCURRENT_REQUEST" default:"64"`
}

type Targets []Target

// Decode parses the env var value as a JSON array of targets.
func (ts *Targets) Decode(value string) error {
	targets := []Target{}
	if err := json.Unmarshal([]byte(value), &targets); err != nil {
		return err
	}
	*ts = targets
	return nil
}

type Target struct {
	URL        string                    `json:"url"`
	EntityID   string                    `json:"entityId"`
	HTTPConfig httputil.HTTPClientConfig `json:"httpConfig"`
}
