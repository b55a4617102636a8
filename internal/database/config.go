package database

type Config struct {
	FileName string `envconfig:"SIGNALS_DB_FILE" default:"signals.db"`
}
