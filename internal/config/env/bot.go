package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Lina3386/moliya-bot/internal/config"
)

const (
	botTokenEnvName = "TELEGRAM_BOT_TOKEN"
	botDebugEnvName = "BOT_DEBUG"
)

type botConfig struct {
	token string
	debug bool
}

// NewBotConfig reads the bot token. Request dumps are on with BOT_DEBUG=true
// or, when BOT_DEBUG is unset, with LOG_LEVEL=debug.
func NewBotConfig() (config.BotConfig, error) {
	token := strings.TrimSpace(os.Getenv(botTokenEnvName))
	if token == "" {
		return nil, fmt.Errorf("%s not found", botTokenEnvName)
	}

	debug := strings.EqualFold(os.Getenv(logLevelEnvName), "debug")
	if raw := os.Getenv(botDebugEnvName); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", botDebugEnvName, raw, err)
		}
		debug = v
	}

	return &botConfig{token: token, debug: debug}, nil
}

func (cfg *botConfig) Token() string {
	return cfg.token
}

func (cfg *botConfig) Debug() bool {
	return cfg.debug
}
