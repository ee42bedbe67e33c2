package config

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultDatabase        = "catalog.db"
	DefaultCollection      = "books"
	DefaultHost            = "localhost"
	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRateLimit       = 10.0
	DefaultBurst           = 20
	DefaultIdleTimeout     = 30 * time.Minute
	DefaultImportInterval  = time.Minute
	DefaultOptimizeEvery   = time.Hour
)

type Config struct {
	StorageDir    string          `toml:"storage_dir"`
	Database      string          `toml:"database"`
	Collection    string          `toml:"collection"`
	DebugServices []string        `toml:"debug_services"`
	Server        ServerConfig    `toml:"server"`
	Session       SessionConfig   `toml:"session"`
	Warehouse     WarehouseConfig `toml:"warehouse"`
}

type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// SessionConfig limits live search sessions.
type SessionConfig struct {
	RateLimit   float64  `toml:"rate_limit"`
	Burst       int      `toml:"burst"`
	IdleTimeout Duration `toml:"idle_timeout"`
}

// WarehouseConfig drives the background maintenance run by serve.
// An empty ImportDir disables drop-directory imports.
type WarehouseConfig struct {
	ImportDir        string   `toml:"import_dir"`
	ImportInterval   Duration `toml:"import_interval"`
	OptimizeInterval Duration `toml:"optimize_interval"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	c := &Config{StorageDir: storageDir}
	c.applyDefaults()
	return c, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout.Duration == 0 {
		c.Server.ShutdownTimeout = Duration{DefaultShutdownTimeout}
	}
	if c.Session.RateLimit == 0 {
		c.Session.RateLimit = DefaultRateLimit
	}
	if c.Session.Burst == 0 {
		c.Session.Burst = DefaultBurst
	}
	if c.Session.IdleTimeout.Duration == 0 {
		c.Session.IdleTimeout = Duration{DefaultIdleTimeout}
	}
	if c.Warehouse.ImportInterval.Duration == 0 {
		c.Warehouse.ImportInterval = Duration{DefaultImportInterval}
	}
	if c.Warehouse.OptimizeInterval.Duration == 0 {
		c.Warehouse.OptimizeInterval = Duration{DefaultOptimizeEvery}
	}
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	if !identifier.MatchString(c.Collection) {
		return fmt.Errorf("collection %q is not a valid table name", c.Collection)
	}
	if strings.ContainsRune(c.Database, os.PathSeparator) && !filepath.IsAbs(c.Database) {
		return fmt.Errorf("database %q must be a file name or an absolute path", c.Database)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Session.RateLimit < 0 || c.Session.Burst < 0 {
		return fmt.Errorf("session rate limit and burst must not be negative")
	}
	if c.Warehouse.ImportInterval.Duration < 0 || c.Warehouse.OptimizeInterval.Duration < 0 {
		return fmt.Errorf("warehouse intervals must not be negative")
	}
	return nil
}

// DBPath is the catalog database location.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(c.StorageDir, c.Database)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	// Replace the placeholder storage_dir with the actual path
	return strings.Replace(configTemplate, "/home/user/.local/share/shelf", storageDir, 1), nil
}

// GetDefaultStorageDir returns the default storage directory for databases
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	shelfDir := filepath.Join(dataDir, "shelf")
	if err := os.MkdirAll(shelfDir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", shelfDir, err)
	}

	return shelfDir, nil
}

// GetConfigDir returns the configuration directory for shelf
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	shelfConfigDir := filepath.Join(configDir, "shelf")
	if err := os.MkdirAll(shelfConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", shelfConfigDir, err)
	}

	return shelfConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
