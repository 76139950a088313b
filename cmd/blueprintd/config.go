package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all blueprintd configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath       string `json:"db_path"`
	LogLevel     string `json:"log_level"`
	AutosaveCron string `json:"autosave_cron"`
	TypeCatalog  string `json:"type_catalog"`
	PolicyRules  string `json:"policy_rules"`
	MemoryStore  bool   `json:"memory_store"`
}

func defaultConfig() Config {
	return Config{
		DBPath:       filepath.Join(blueprintdDir(), "blueprintd.db"),
		LogLevel:     "info",
		AutosaveCron: "*/5 * * * *",
	}
}

func blueprintdDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blueprintd"
	}
	return filepath.Join(home, ".blueprintd")
}

func settingsPath() string {
	return filepath.Join(blueprintdDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("BLUEPRINTD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BLUEPRINTD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BLUEPRINTD_AUTOSAVE_CRON"); v != "" {
		cfg.AutosaveCron = v
	}
	if v := os.Getenv("BLUEPRINTD_TYPE_CATALOG"); v != "" {
		cfg.TypeCatalog = v
	}
	if v := os.Getenv("BLUEPRINTD_POLICY_RULES"); v != "" {
		cfg.PolicyRules = v
	}
	if v := os.Getenv("BLUEPRINTD_MEMORY_STORE"); v != "" {
		cfg.MemoryStore = v == "true" || v == "1"
	}

	return cfg
}
