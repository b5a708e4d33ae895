package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds connection and timing parameters for the beacon daemon.
type Config struct {
	// ServiceURL is the base URL of the alert service REST API.
	ServiceURL string `yaml:"service_url"`
	// RedisAddress is the host:port of the realtime event broker.
	RedisAddress string `yaml:"redis_addr"`
	// RedisPassword authenticates against the broker; empty means no auth.
	RedisPassword string `yaml:"redis_password"`
	// RedisDB selects the broker database index.
	RedisDB int `yaml:"redis_db"`
	// IdentityFile is the path to the JSON file storing the device identity.
	IdentityFile string `yaml:"identity_file"`
	// Latitude is the fixed latitude of this installation.
	Latitude float64 `yaml:"latitude"`
	// Longitude is the fixed longitude of this installation.
	Longitude float64 `yaml:"longitude"`
	// Timeout is the duration for network operations and REST calls.
	Timeout time.Duration `yaml:"timeout"`
	// Cooldown is the mandatory waiting period after a confirmed trigger.
	Cooldown time.Duration `yaml:"cooldown"`
	// ActiveDuration is the own-alert countdown before local auto-expiry.
	ActiveDuration time.Duration `yaml:"active_duration"`
	// SyncInterval is the period of the reconciliation poll.
	SyncInterval time.Duration `yaml:"sync_interval"`
	// LocationInterval is the period between device location updates.
	LocationInterval time.Duration `yaml:"location_interval"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for beacon settings.
	DefaultConfigFilename = "beacon-settings.yaml"

	// DefaultIdentityFilename is the default filename for the device identity JSON.
	DefaultIdentityFilename = "beacon-identity.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 10 * time.Second

	// DefaultCooldown is the default post-trigger waiting period.
	DefaultCooldown = 60 * time.Second

	// DefaultActiveDuration is the default own-alert countdown.
	DefaultActiveDuration = 1200 * time.Second

	// DefaultSyncInterval is the default reconciliation poll period.
	DefaultSyncInterval = 10 * time.Second

	// DefaultLocationInterval is the default location update period.
	DefaultLocationInterval = 15 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServiceURLRequired is returned when the alert service URL is missing.
	errServiceURLRequired = errors.New("service URL must be provided")
	// errRedisAddressRequired is returned when the broker address is missing.
	errRedisAddressRequired = errors.New("redis address must be provided")
	// errCoordinatesOutOfRange is returned when the installation coordinates
	// fall outside the legal latitude/longitude ranges.
	errCoordinatesOutOfRange = errors.New("coordinates out of range")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling defaults for unset durations and paths.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServiceURL == "" {
		return errServiceURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.ServiceURL); err != nil {
		return fmt.Errorf("invalid service URL: %w", err)
	}

	if cfg.RedisAddress == "" {
		return errRedisAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.RedisAddress); err != nil {
		return fmt.Errorf("invalid redis address: %w", err)
	}

	if cfg.Latitude < -90 || cfg.Latitude > 90 ||
		cfg.Longitude < -180 || cfg.Longitude > 180 {
		return errCoordinatesOutOfRange
	}

	if cfg.IdentityFile == "" {
		cfg.IdentityFile = DefaultIdentityFilename
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	if cfg.ActiveDuration <= 0 {
		cfg.ActiveDuration = DefaultActiveDuration
	}

	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}

	if cfg.LocationInterval <= 0 {
		cfg.LocationInterval = DefaultLocationInterval
	}

	return nil
}
