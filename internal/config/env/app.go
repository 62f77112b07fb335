package env

import (
	"fmt"
	"os"
	"time"

	"github.com/Lina3386/moliya-bot/internal/config"
)

const (
	logLevelEnvName = "LOG_LEVEL"
	tzNameEnvName   = "TZ_NAME"
	httpAddrEnvName = "HTTP_ADDR"
)

const defaultTZName = "Asia/Tashkent"

type appConfig struct {
	logLevel string
	location *time.Location
	httpAddr string
}

func NewAppConfig() (config.AppConfig, error) {
	level := os.Getenv(logLevelEnvName)
	if level == "" {
		level = "info"
	}

	tz := os.Getenv(tzNameEnvName)
	if tz == "" {
		tz = defaultTZName
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown %s %q: %w", tzNameEnvName, tz, err)
	}

	return &appConfig{
		logLevel: level,
		location: loc,
		httpAddr: os.Getenv(httpAddrEnvName),
	}, nil
}

func (cfg *appConfig) LogLevel() string {
	return cfg.logLevel
}

func (cfg *appConfig) Location() *time.Location {
	return cfg.location
}

func (cfg *appConfig) HTTPAddr() string {
	return cfg.httpAddr
}
