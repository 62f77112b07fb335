package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Lina3386/moliya-bot/internal/config"
)

const adminIDEnvName = "ADMIN_ID"

type adminConfig struct {
	adminID int64
}

// NewAdminConfig reads the admin's telegram id; unset means nobody may /push.
func NewAdminConfig() (config.AdminConfig, error) {
	raw := strings.TrimSpace(os.Getenv(adminIDEnvName))
	if raw == "" {
		return &adminConfig{}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a telegram user id: %w", adminIDEnvName, err)
	}
	return &adminConfig{adminID: id}, nil
}

func (cfg *adminConfig) AdminID() int64 {
	return cfg.adminID
}
