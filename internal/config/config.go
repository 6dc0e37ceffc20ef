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
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Economy struct {
		ExtraAttemptCost int `yaml:"extraAttemptCost"`
		BaseAttempts     int `yaml:"baseAttempts"`
	} `yaml:"economy"`
	Lock struct {
		TTL string `yaml:"ttl"`
	} `yaml:"lock"`
	Revision struct {
		Size             int `yaml:"size"`
		TimeLimitMinutes int `yaml:"timeLimitMinutes"`
		PassingScore     int `yaml:"passingScore"`
	} `yaml:"revision"`
	Catalog struct {
		File string `yaml:"file"`
	} `yaml:"catalog"`
}

// Load reads YAML config from path. Values of the form ${VAR} are expanded from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v, or fallback when v is not positive.
func IntOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
