package env

import (
	"testing"
)

func TestNewBotConfig(t *testing.T) {
	t.Setenv(botTokenEnvName, "")
	if _, err := NewBotConfig(); err == nil {
		t.Fatal("expected error without token")
	}

	t.Setenv(botTokenEnvName, " 123:abc ")
	t.Setenv(botDebugEnvName, "")
	t.Setenv(logLevelEnvName, "debug")
	cfg, err := NewBotConfig()
	if err != nil {
		t.Fatalf("NewBotConfig() error = %v", err)
	}
	if cfg.Token() != "123:abc" || !cfg.Debug() {
		t.Errorf("token=%q debug=%v", cfg.Token(), cfg.Debug())
	}

	t.Setenv(botDebugEnvName, "false")
	if cfg, _ := NewBotConfig(); cfg.Debug() {
		t.Error("BOT_DEBUG=false must win over LOG_LEVEL")
	}

	t.Setenv(botDebugEnvName, "sometimes")
	if _, err := NewBotConfig(); err == nil {
		t.Error("expected error for unparsable BOT_DEBUG")
	}
}

func TestNewAdminConfig(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: " 12345 ", want: 12345},
		{raw: "admin", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv(adminIDEnvName, tt.raw)
			cfg, err := NewAdminConfig()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAdminConfig() error = %v", err)
			}
			if cfg.AdminID() != tt.want {
				t.Errorf("AdminID() = %d, want %d", cfg.AdminID(), tt.want)
			}
		})
	}
}

func TestNewDBConfig_Default(t *testing.T) {
	t.Setenv(dbPathEnvName, "")
	cfg, _ := NewDBConfig()
	if cfg.Path() != defaultDBPath {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestNewAppConfig(t *testing.T) {
	t.Setenv(logLevelEnvName, "")
	t.Setenv(tzNameEnvName, "UTC")
	t.Setenv(httpAddrEnvName, ":8081")
	cfg, err := NewAppConfig()
	if err != nil {
		t.Fatalf("NewAppConfig() error = %v", err)
	}
	if cfg.LogLevel() != "info" || cfg.Location().String() != "UTC" || cfg.HTTPAddr() != ":8081" {
		t.Errorf("config = %q %q %q", cfg.LogLevel(), cfg.Location(), cfg.HTTPAddr())
	}

	t.Setenv(tzNameEnvName, "Mars/Olympus")
	if _, err := NewAppConfig(); err == nil {
		t.Error("expected error for unknown time zone")
	}
}
