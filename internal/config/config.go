package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config defines plugmon service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
	} `yaml:"redis"`
	Tuya struct {
		ClientID string `yaml:"client_id" env:"TUYA_CLIENT_ID"`
		Secret   string `yaml:"secret" env:"TUYA_CLIENT_SECRET"`
		BaseURL  string `yaml:"base_url" env:"TUYA_BASE_URL"`
		DeviceID string `yaml:"device_id" env:"TUYA_DEVICE_ID"`
	} `yaml:"tuya"`
	Poller struct {
		IntervalMS       int `yaml:"interval_ms" env:"POLLER_INTERVAL_MS"`
		FailureThreshold int `yaml:"failure_threshold" env:"POLLER_FAILURE_THRESHOLD"`
		RestartDelayMS   int `yaml:"restart_delay_ms" env:"POLLER_RESTART_DELAY_MS"`
	} `yaml:"poller"`
	Consumption struct {
		RatePerKWh float64 `yaml:"rate_per_kwh" env:"CONSUMPTION_RATE_PER_KWH"`
	} `yaml:"consumption"`
	DefaultTimezone string `yaml:"default_timezone" env:"DEFAULT_TIMEZONE"`
}

// Load configuration from optional YAML file plus environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Poller.IntervalMS = 3000
	cfg.Poller.FailureThreshold = 40
	cfg.Poller.RestartDelayMS = 10000
	cfg.Consumption.RatePerKWh = 10
	cfg.DefaultTimezone = "UTC"

	if err := loadInto(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Tuya.ClientID) == "" || strings.TrimSpace(cfg.Tuya.Secret) == "" {
		return nil, errors.New("config: tuya client id and secret required")
	}
	if strings.TrimSpace(cfg.Tuya.BaseURL) == "" {
		return nil, errors.New("config: tuya base url required")
	}
	if strings.TrimSpace(cfg.Tuya.DeviceID) == "" {
		return nil, errors.New("config: tuya device id required")
	}
	if cfg.Poller.IntervalMS <= 0 {
		return nil, errors.New("config: poller interval must be positive")
	}
	if cfg.Poller.FailureThreshold <= 0 {
		return nil, errors.New("config: poller failure threshold must be positive")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// PollInterval returns the poll period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalMS) * time.Millisecond
}

// RestartDelay returns the delay between failure escalation and process exit.
func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Poller.RestartDelayMS) * time.Millisecond
}
