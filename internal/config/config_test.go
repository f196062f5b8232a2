package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "PARSER_STRICT", "TELEMETRY_HISTORY_LIMIT",
		"TELEMETRY_MAX_HISTORY", "MQTT_ENABLED", "REDIS_SNAPSHOT_TTL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "5000", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.True(t, cfg.Parser.Strict)
	assert.Equal(t, 100, cfg.Telemetry.HistoryLimit)
	assert.Equal(t, 1000, cfg.Telemetry.MaxHistory)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.SnapshotTTL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DB_DRIVER", "MEMORY")
	t.Setenv("PARSER_STRICT", "false")
	t.Setenv("REDIS_SNAPSHOT_TTL", "5s")
	t.Setenv("TELEMETRY_HISTORY_LIMIT", "25")
	t.Setenv("SIMULATOR_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "8081", cfg.App.Port)
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.False(t, cfg.Parser.Strict)
	assert.Equal(t, 5*time.Second, cfg.Redis.SnapshotTTL)
	assert.Equal(t, 25, cfg.Telemetry.HistoryLimit)
	assert.True(t, cfg.Workers.SimulatorEnabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	t.Setenv("DEBUG", "maybe")
	t.Setenv("WORKER_SIMULATOR_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 0, cfg.Redis.DB)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, time.Second, cfg.Workers.SimulatorInterval)
}

func TestRedacted(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("MQTT_PASSWORD", "")

	cfg := Load()
	masked := cfg.Redacted()

	assert.Equal(t, "********", masked.DB.Password)
	assert.Equal(t, "", masked.MQTT.Password)
	assert.Equal(t, "hunter2", cfg.DB.Password)
	assert.Equal(t, cfg.App.Port, masked.App.Port)
}
