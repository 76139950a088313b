package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "*/5 * * * *", cfg.AutosaveCron)
	assert.Contains(t, cfg.DBPath, "blueprintd.db")
	assert.False(t, cfg.MemoryStore)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BLUEPRINTD_DB_PATH", "/tmp/bp.db")
	t.Setenv("BLUEPRINTD_LOG_LEVEL", "debug")
	t.Setenv("BLUEPRINTD_AUTOSAVE_CRON", "0 * * * *")
	t.Setenv("BLUEPRINTD_MEMORY_STORE", "1")

	cfg := loadConfig()
	assert.Equal(t, "/tmp/bp.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0 * * * *", cfg.AutosaveCron)
	assert.True(t, cfg.MemoryStore)
}
