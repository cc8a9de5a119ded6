package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	AI struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		Gateway  string `yaml:"gateway"`
	} `yaml:"ai"`
	Quiz struct {
		HistoryLimit  int    `yaml:"history_limit"`
		AnswerDelay   string `yaml:"answer_delay"`
		FetchRetries  int    `yaml:"fetch_retries"`
		RetryBackoff  string `yaml:"retry_backoff"`
		RecentCacheN  int    `yaml:"recent_cache_size"`
		RecentCacheTT string `yaml:"recent_cache_ttl"`
	} `yaml:"quiz"`
	Analytics struct {
		RecentPlayers int `yaml:"recent_players"`
	} `yaml:"analytics"`
	Janitor struct {
		Schedule   string `yaml:"schedule"`
		StaleAfter string `yaml:"stale_after"`
	} `yaml:"janitor"`
}

// Load reads YAML config from path. An AI_API_KEY environment variable
// overrides the file so keys can stay out of checked-in config.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if key := os.Getenv("AI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or
// unparseable.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v unless it is zero or negative, in which case fallback wins.
func IntOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
