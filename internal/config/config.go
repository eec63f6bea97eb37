// Package config loads, validates and saves the portsweep configuration file.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
)

const (
	configDirPerm  = 0750
	configFilePerm = 0600
)

// Config represents the complete portsweep configuration
type Config struct {
	// Scanning defaults
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Host name resolution
	Resolver ResolverConfig `yaml:"resolver" json:"resolver"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Scheduled scans
	Schedules []ScheduleConfig `yaml:"schedules" json:"schedules" validate:"dive"`
}

// ScanningConfig holds scanning-related settings
type ScanningConfig struct {
	// Maximum simultaneous connection attempts per scan
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"min=1,max=10000"`

	// Per-attempt connect timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Connection attempts per second, 0 disables the limit
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`

	// Port specification used when none is given
	DefaultPorts string `yaml:"default_ports" json:"default_ports" validate:"required"`

	// Maximum scans running at once in the server
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" json:"max_concurrent_runs" validate:"min=1"`

	// Number of finished runs kept in memory
	RunHistory int `yaml:"run_history" json:"run_history" validate:"min=1"`
}

// ResolverConfig holds DNS settings
type ResolverConfig struct {
	// Nameserver as host:port. Empty uses the system resolver.
	Nameserver string `yaml:"nameserver" json:"nameserver" validate:"omitempty,hostname_port"`

	// Resolution cache entries, 0 disables the cache
	CacheSize int `yaml:"cache_size" json:"cache_size" validate:"gte=0"`

	// Resolution cache lifetime
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"gte=0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"host" validate:"required_if=Enabled true"`
	Port    int    `yaml:"port" json:"port" validate:"min=1,max=65535"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"gt=0"`

	EnableCORS  bool     `yaml:"enable_cors" json:"enable_cors"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// When enabled every /api/v1 request must carry an X-API-Key whose
	// bcrypt hash is listed in APIKeyHashes.
	AuthEnabled  bool     `yaml:"auth_enabled" json:"auth_enabled"`
	APIKeyHashes []string `yaml:"api_key_hashes" json:"-" validate:"required_if=AuthEnabled true,dive,startswith=$2"`

	// Per-client token bucket: requests per second and burst size
	RateLimitEnabled  bool    `yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RateLimitRequests float64 `yaml:"rate_limit_requests" json:"rate_limit_requests" validate:"required_if=RateLimitEnabled true,gte=0"`
	RateLimitBurst    int     `yaml:"rate_limit_burst" json:"rate_limit_burst" validate:"gte=0"`

	// Write an Apache combined log line per request to the log output
	AccessLog bool `yaml:"access_log" json:"access_log"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"startswith=/"`
}

// ScheduleConfig describes a recurring scan
type ScheduleConfig struct {
	Name        string        `yaml:"name" json:"name" validate:"required"`
	Cron        string        `yaml:"cron" json:"cron" validate:"required"`
	Host        string        `yaml:"host" json:"host" validate:"required"`
	Ports       string        `yaml:"ports" json:"ports"`
	Concurrency int           `yaml:"concurrency" json:"concurrency" validate:"omitempty,min=1,max=10000"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			Concurrency:       500,
			Timeout:           time.Second,
			RateLimit:         0,
			DefaultPorts:      "well-known",
			MaxConcurrentRuns: 4,
			RunHistory:        100,
		},
		Resolver: ResolverConfig{
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		API: APIConfig{
			Enabled:      true,
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			EnableCORS:   true,
			CORSOrigins:  []string{"*"},

			RateLimitRequests: 20,
			RateLimitBurst:    40,
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	// JSON is a subset of YAML, so one decoder covers both extensions.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config %s", filepath.Base(path)), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("invalid value (%s %s)", fe.Tag(), fe.Param()), field, fe.Value())
		}
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}

	switch c.Logging.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return errors.NewConfigFieldError(errors.CodeValidation, "invalid log level", "logging.level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return errors.NewConfigFieldError(errors.CodeValidation, "invalid log format", "logging.format", c.Logging.Format)
	}

	names := make(map[string]bool, len(c.Schedules))
	for i, s := range c.Schedules {
		if names[s.Name] {
			return errors.NewConfigFieldError(errors.CodeValidation, "duplicate schedule name",
				fmt.Sprintf("schedules[%d].name", i), s.Name)
		}
		names[s.Name] = true
	}

	return nil
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// IsAPIEnabled returns true if API server is enabled
func (c *Config) IsAPIEnabled() bool {
	return c.API.Enabled
}
