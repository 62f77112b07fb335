package env

import (
	"os"

	"github.com/Lina3386/moliya-bot/internal/config"
)

const dbPathEnvName = "DB_PATH"

const defaultDBPath = "moliya.db"

type dbConfig struct {
	path string
}

func NewDBConfig() (config.DBConfig, error) {
	path := os.Getenv(dbPathEnvName)
	if path == "" {
		path = defaultDBPath
	}
	return &dbConfig{path: path}, nil
}

func (cfg *dbConfig) Path() string {
	return cfg.path
}
