package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	News     News     `yaml:"news"`
	Images   Images   `yaml:"images"`
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Output   Output   `yaml:"output"`
	Logging  Logging  `yaml:"logging"`
}

type News struct {
	BaseURL         string        `yaml:"base_url"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	Language        string        `yaml:"language"`
	Timeout         time.Duration `yaml:"timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries"`
	Retries         int           `yaml:"retries"`
}

type Images struct {
	Timeout              time.Duration `yaml:"timeout"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries      int           `yaml:"cache_max_entries"`
	MaxBytes             int64         `yaml:"max_bytes"`
	AllowPrivateNetworks bool          `yaml:"allow_private_networks"`
}

type Server struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	SessionSecretEnv string `yaml:"session_secret_env"`
	RequireLogin     bool   `yaml:"require_login"`
	SecureCookies    bool   `yaml:"secure_cookies"`
}

type Database struct {
	URLEnv string `yaml:"url_env"`
	Path   string `yaml:"path"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

// ConfigDir returns the XDG config directory for newsportal.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "newsportal")
}

// DataDir returns the XDG data directory for newsportal.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "newsportal")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsportal/config.yaml > ./config.yaml.
// An empty path with a nil error means no file exists and defaults apply.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Load reads and parses a config YAML file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults and then
// environment overrides.
func parse(data []byte) (*Config, error) {
	cfg := defaults()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		News: News{
			BaseURL:         "https://newsapi.org/v2",
			APIKeyEnv:       "NEWSAPI_KEY",
			Language:        "en",
			Timeout:         10 * time.Second,
			CacheTTL:        5 * time.Minute,
			CacheMaxEntries: 500,
			Retries:         2,
		},
		Images: Images{
			Timeout:         5 * time.Second,
			CacheTTL:        time.Hour,
			CacheMaxEntries: 200,
			MaxBytes:        10 << 20,
		},
		Server: Server{
			Host:             "127.0.0.1",
			Port:             5000,
			SessionSecretEnv: "SECRET_KEY",
			RequireLogin:     true,
		},
		Database: Database{URLEnv: "DATABASE_URL"},
		Logging:  Logging{Level: "info", Env: "development"},
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.News.Timeout <= 0 {
		return fmt.Errorf("news.timeout must be positive")
	}
	if c.Images.Timeout <= 0 {
		return fmt.Errorf("images.timeout must be positive")
	}
	if c.Images.MaxBytes <= 0 {
		return fmt.Errorf("images.max_bytes must be positive")
	}
	if c.News.CacheMaxEntries < 0 || c.Images.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must not be negative")
	}
	return nil
}

// APIKey returns the NewsAPI key from the configured environment variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.News.APIKeyEnv)
}

// SessionSecret returns the cookie signing secret from the environment.
func (c *Config) SessionSecret() string {
	return os.Getenv(c.Server.SessionSecretEnv)
}

// DatabaseURL returns the effective database location. A postgres:// URL
// selects the PostgreSQL store; anything else is a SQLite file path.
func (c *Config) DatabaseURL() string {
	if u := os.Getenv(c.Database.URLEnv); u != "" {
		return u
	}
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.GetDataDir(), "newsportal.db")
}

// IsPostgres reports whether a database URL points at PostgreSQL.
func IsPostgres(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// SQLitePath strips an optional sqlite:// scheme from a database URL.
func SQLitePath(url string) string {
	return strings.TrimPrefix(url, "sqlite://")
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}
