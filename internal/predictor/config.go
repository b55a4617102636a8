package predictor

type AlgType string

const (
	AlgTypeOLSTrend AlgType = "OLS_TREND"
)

type Config struct {
	Type AlgType `envconfig:"SIGNALS_PREDICTOR_TYPE" default:"OLS_TREND"`
}

func (c Config) PredictorType() AlgType {
	return c.Type
}
