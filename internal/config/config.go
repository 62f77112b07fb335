package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig interface {
	Path() string
}

type BotConfig interface {
	Token() string
	Debug() bool
}

type AdminConfig interface {
	AdminID() int64
}

type AdviceConfig interface {
	URL() string
	Key() string
	Host() string
}

type AppConfig interface {
	LogLevel() string
	Location() *time.Location
	// HTTPAddr is empty when the ops endpoint is disabled.
	HTTPAddr() string
}

// Load reads the .env file into the environment. A missing file is fine:
// the variables may come from the process environment.
func Load(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
