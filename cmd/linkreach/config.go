package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config is the daemon configuration, loaded from YAML with flag overrides.
type config struct {
	Listen    string          `yaml:"listen"`
	DB        string          `yaml:"db"`
	Browser   browserConfig   `yaml:"browser"`
	Dashboard dashboardConfig `yaml:"dashboard"`
}

type browserConfig struct {
	// Remote is the WebSocket URL of an already running Chrome; empty
	// launches a local one.
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
	// ProfileDir is the persistent Chrome profile carrying the login
	// session.
	ProfileDir string `yaml:"profile_dir"`
}

type dashboardConfig struct {
	URL string `yaml:"url"`
	// APIKeyEnv names the environment variable holding the dashboard
	// API key. The key itself never lives in the config file.
	APIKeyEnv string `yaml:"api_key_env"`
}

func defaultConfig() config {
	return config{
		Listen: "127.0.0.1:8844",
		DB:     "linkreach.db",
		Browser: browserConfig{
			ProfileDir: ".linkreach-profile",
		},
		Dashboard: dashboardConfig{
			URL:       "http://localhost:3000",
			APIKeyEnv: "LINKREACH_DASHBOARD_KEY",
		},
	}
}

// loadConfig reads the YAML file over the defaults. An empty path returns
// the defaults untouched.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
