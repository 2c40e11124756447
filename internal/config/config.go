package config

import (
	"errors"
	"fmt"
	"os"

	"innkeeper/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Server      ServerConfig      `yaml:"server"`
	Hotel       HotelConfig       `yaml:"hotel"`
	Database    DatabaseConfig    `yaml:"database"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Redis       RedisConfig       `yaml:"redis"`
	LoginLimit  LoginLimitConfig  `yaml:"login_limit"`
	Backup      BackupConfig      `yaml:"backup"`
	Exports     ExportConfig      `yaml:"exports"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Listen      string  `yaml:"listen"`
	Workers     int     `yaml:"workers"`
	AcceptRPS   float64 `yaml:"accept_rps"`
	AcceptBurst int     `yaml:"accept_burst"`
}

type HotelConfig struct {
	Capacity int `yaml:"capacity"`
	Year     int `yaml:"year"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CredentialsConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoginLimitConfig struct {
	Attempts int `yaml:"attempts"`
	Window   int `yaml:"window"` // seconds
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type ExportConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
	Path     string `yaml:"path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables referenced in the YAML are
	// expanded before parsing.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("server listen address is required")
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server workers must be >= 1, got %d", c.Server.Workers)
	}
	if c.Hotel.Capacity < 1 {
		return fmt.Errorf("hotel capacity must be >= 1, got %d", c.Hotel.Capacity)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Credentials.Path == "" {
		return errors.New("credentials path is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Workers == 0 {
		c.Server.Workers = models.DefaultWorkers
	}
	if c.Hotel.Capacity == 0 {
		c.Hotel.Capacity = models.DefaultCapacity
	}
	if c.Hotel.Year == 0 {
		c.Hotel.Year = models.DefaultYear
	}
	if c.LoginLimit.Attempts == 0 {
		c.LoginLimit.Attempts = models.LoginAttemptLimit
	}
	if c.LoginLimit.Window == 0 {
		c.LoginLimit.Window = models.LoginAttemptWindow
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Enabled && c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
