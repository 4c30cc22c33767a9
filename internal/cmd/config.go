package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration loaded from config.yaml. DB_*
// settings stay in the environment (see internal/dbconfig).
type Config struct {
	Gateway struct {
		Port int `yaml:"port"`
	} `yaml:"gateway"`

	Storage struct {
		// "postgres" for the durable ledger, "memory" for local runs.
		Backend string `yaml:"backend"`
	} `yaml:"storage"`

	Catalog struct {
		PlayersFile string `yaml:"players_file"`
	} `yaml:"catalog"`

	Draft struct {
		PickBudgetSec      int `yaml:"pick_budget_sec"`
		GraceMillis        int `yaml:"grace_millis"`
		UrgentThresholdSec int `yaml:"urgent_threshold_sec"`
	} `yaml:"draft"`

	NATS struct {
		Enabled    bool   `yaml:"enabled"`
		URL        string `yaml:"url"`
		StreamName string `yaml:"stream_name"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Gateway.Port = 8080
	cfg.Storage.Backend = "memory"
	cfg.Catalog.PlayersFile = "players.json"
	cfg.Draft.PickBudgetSec = 60
	cfg.Draft.GraceMillis = 600
	cfg.Draft.UrgentThresholdSec = 9
	return &cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
