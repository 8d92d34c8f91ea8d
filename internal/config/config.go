package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Assets   AssetsConfig   `toml:"assets"`
	Editing  EditingConfig  `toml:"editing"`
	Logging  LoggingConfig  `toml:"logging"`
	Ngrok    NgrokConfig    `toml:"ngrok"`
	Auth     AuthConfig     `toml:"auth"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	StaticDir   string `toml:"static_dir"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// AssetsConfig contains media asset library configuration
type AssetsConfig struct {
	LibraryPath      string   `toml:"library_path"`
	SupportedFormats []string `toml:"supported_formats"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
	ScanOnStartup    bool     `toml:"scan_on_startup"`
	ProbeCacheTTL    int      `toml:"probe_cache_ttl_seconds"`
	AllowUploads     bool     `toml:"allow_uploads"`
	MaxUploadSizeMB  int64    `toml:"max_upload_size_mb"`
}

// EditingConfig tunes the timeline editing engine
type EditingConfig struct {
	SnapThresholdMs    int64   `toml:"snap_threshold_ms"`
	MinClipDurationMs  int64   `toml:"min_clip_duration_ms"`
	MinSpeed           float64 `toml:"min_speed"`
	MaxSpeed           float64 `toml:"max_speed"`
	PixelsPerSecond    float64 `toml:"pixels_per_second"`
	LockTimeoutSeconds int     `toml:"lock_timeout_seconds"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled   bool   `toml:"enabled"`
	AuthToken string `toml:"auth_token"`
	Domain    string `toml:"domain"`
	Region    string `toml:"region"`
}

// AuthConfig contains account and session configuration
type AuthConfig struct {
	Enabled           bool   `toml:"enabled"`
	UsersFile         string `toml:"users_file"`
	AllowRegistration bool   `toml:"allow_registration"`
	SessionTTLHours   int    `toml:"session_ttl_hours"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			StaticDir:   "./static",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:           "./cutroom.db",
			MaxConnections: 10,
		},
		Assets: AssetsConfig{
			LibraryPath:      "./library",
			SupportedFormats: []string{".mp4", ".mov", ".mp3", ".flac", ".wav", ".png", ".jpg", ".jpeg", ".gif"},
			WatchForChanges:  true,
			ScanOnStartup:    true,
			ProbeCacheTTL:    300,
			AllowUploads:     true,
			MaxUploadSizeMB:  2048,
		},
		Editing: EditingConfig{
			SnapThresholdMs:    200,
			MinClipDurationMs:  100,
			MinSpeed:           0.2,
			MaxSpeed:           5.0,
			PixelsPerSecond:    100,
			LockTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
		Ngrok: NgrokConfig{
			Enabled:   false,
			AuthToken: "",
			Domain:    "",
			Region:    "us",
		},
		Auth: AuthConfig{
			Enabled:           false,
			UsersFile:         "./users.toml",
			AllowRegistration: true,
			SessionTTLHours:   72,
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	// Load from file
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create or open file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	header := `# Cutroom Configuration
# This file contains all configuration options for the Cutroom video editor backend.
# Edit the values below to customize your server settings.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Encode configuration to TOML
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	// Validate database config
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	// Validate assets config
	if c.Assets.LibraryPath == "" {
		return fmt.Errorf("asset library path cannot be empty")
	}
	if len(c.Assets.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported asset format must be specified")
	}

	// Validate editing config
	if c.Editing.SnapThresholdMs < 0 {
		return fmt.Errorf("snap threshold cannot be negative")
	}
	if c.Editing.MinClipDurationMs < 1 {
		return fmt.Errorf("minimum clip duration must be at least 1ms")
	}
	if c.Editing.MinSpeed <= 0 {
		return fmt.Errorf("minimum speed must be positive")
	}
	if c.Editing.MaxSpeed < c.Editing.MinSpeed {
		return fmt.Errorf("maximum speed %v is below minimum speed %v", c.Editing.MaxSpeed, c.Editing.MinSpeed)
	}
	if c.Editing.PixelsPerSecond <= 0 {
		return fmt.Errorf("pixels per second must be positive")
	}
	if c.Editing.LockTimeoutSeconds < 1 {
		return fmt.Errorf("lock timeout must be at least 1 second")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	// Validate auth config
	if c.Auth.Enabled && c.Auth.UsersFile == "" {
		return fmt.Errorf("users file cannot be empty when auth is enabled")
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// IsFormatSupported checks if an asset file extension is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Assets.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}
