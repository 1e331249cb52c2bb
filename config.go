package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"bikedemand/logging"
	"gopkg.in/yaml.v2"
)

// Config is the service configuration read from config.yaml.
type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		RateLimit      float64       `yaml:"rate_limit"`
		Burst          int           `yaml:"burst"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Model struct {
		Path  string `yaml:"path"`
		Watch bool   `yaml:"watch"`
	} `yaml:"model"`
	Frontend struct {
		Dir string `yaml:"dir"`
	} `yaml:"frontend"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log logging.Config `yaml:"log"`
}

func defaultConfig() *Config {
	config := &Config{}
	config.Http.Port = 8000
	config.Http.Timeout = 30 * time.Second
	config.Http.AllowedOrigins = []string{"*"}
	config.Http.MaxBodyBytes = 1 << 20
	config.Model.Path = "models/bike_rental_model.json"
	config.Frontend.Dir = "frontend"
	config.Cache.Size = 1024
	config.Log.Level = "info"
	config.Log.MaxSizeMB = 100
	config.Log.MaxBackups = 3
	config.Log.MaxAgeDays = 28
	return config
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else {
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BIKE_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BIKE_HTTP_PORT: %w", err)
		}
		c.Http.Port = port
	}
	if v := os.Getenv("BIKE_MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("BIKE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Http.Timeout < 0 {
		return errors.New("http.timeout must not be negative")
	}
	if c.Http.RateLimit < 0 || c.Http.Burst < 0 {
		return errors.New("http.rate_limit and http.burst must not be negative")
	}
	if c.Cache.Size < 0 {
		return errors.New("cache.size must not be negative")
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
