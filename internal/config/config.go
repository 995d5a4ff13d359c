package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"`
		LeadHours            int  `yaml:"lead_hours"`
		CheckIntervalSeconds int  `yaml:"check_interval_seconds"`
		PerSecond            int  `yaml:"per_second"`
		Burst                int  `yaml:"burst"`
	} `yaml:"reminders"`

	Booking struct {
		DefaultStepMinutes int `yaml:"default_step_minutes"`
		OnDemandPerMinute  int `yaml:"on_demand_per_minute"`
		OnDemandBurst      int `yaml:"on_demand_burst"`
		MaxBatchDays       int `yaml:"max_batch_days"`
		ListDefaultLimit   int `yaml:"list_default_limit"`
		ExportMaxRangeDays int `yaml:"export_max_range_days"`
	} `yaml:"booking"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/slotbook.db"
	}
	if c.Booking.DefaultStepMinutes <= 0 {
		c.Booking.DefaultStepMinutes = 30
	}
	if c.Booking.MaxBatchDays <= 0 {
		c.Booking.MaxBatchDays = 90
	}
	if c.Booking.ListDefaultLimit <= 0 {
		c.Booking.ListDefaultLimit = 50
	}
	if c.Booking.ExportMaxRangeDays <= 0 {
		c.Booking.ExportMaxRangeDays = 366
	}
	if c.Reminders.LeadHours <= 0 {
		c.Reminders.LeadHours = 24
	}
	if c.Reminders.CheckIntervalSeconds <= 0 {
		c.Reminders.CheckIntervalSeconds = 60
	}
}

// CacheTTL returns the redis cache TTL, zero when caching is disabled.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.Address == "" || c.Redis.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
