package env

import (
	"os"

	"github.com/Lina3386/moliya-bot/internal/config"
)

const (
	adviceURLEnvName  = "ADVICE_API_URL"
	adviceKeyEnvName  = "ADVICE_API_KEY"
	adviceHostEnvName = "ADVICE_API_HOST"
)

type adviceConfig struct {
	url  string
	key  string
	host string
}

// NewAdviceConfig never fails: without a URL every request gets the fallback text.
func NewAdviceConfig() (config.AdviceConfig, error) {
	return &adviceConfig{
		url:  os.Getenv(adviceURLEnvName),
		key:  os.Getenv(adviceKeyEnvName),
		host: os.Getenv(adviceHostEnvName),
	}, nil
}

func (cfg *adviceConfig) URL() string {
	return cfg.url
}

func (cfg *adviceConfig) Key() string {
	return cfg.key
}

func (cfg *adviceConfig) Host() string {
	return cfg.host
}
