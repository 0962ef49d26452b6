package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("API_BASE_URL", "http://localhost:9000/")

	cfg, err := loadConfig()
	req.NoError(err)
	req.Equal(":8080", cfg.Addr)
	req.Equal("http://localhost:9000", cfg.APIBaseURL)
	req.Equal(10*time.Second, cfg.APITimeout)
	req.Equal(storageDriverSQLite, cfg.StorageDriver)
	req.Equal(720*time.Hour, cfg.ClientTTL)
	req.Equal(30*time.Minute, cfg.PageIdleTTL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown storage driver", "STORAGE_DRIVER", "redis"},
		{"api url not a url", "API_BASE_URL", "not a url"},
		{"malformed timeout", "API_TIMEOUT", "soon"},
		{"zero page ttl", "PAGE_IDLE_TTL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := loadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_Badger(t *testing.T) {
	req := require.New(t)
	t.Setenv("STORAGE_DRIVER", "badger")
	t.Setenv("BADGER_PATH", "/tmp/ls")

	cfg, err := loadConfig()
	req.NoError(err)
	req.Equal(storageDriverBadger, cfg.StorageDriver)
	req.Equal("/tmp/ls", cfg.BadgerPath)
}

func TestNewLogger(t *testing.T) {
	ctx := t.Context()

	log := newLogger("DEBUG")
	require.True(t, log.Enabled(ctx, slog.LevelDebug))

	log = newLogger("bogus")
	require.False(t, log.Enabled(ctx, slog.LevelDebug))
	require.True(t, log.Enabled(ctx, slog.LevelInfo))
}
