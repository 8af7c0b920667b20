package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store kinds understood by the wiring.
const (
	StoreMemory   = "memory"
	StoreLRU      = "lru"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// reservedNames are answered by the probe endpoints, so a source with one of
// these names could never be served.
var reservedNames = map[string]bool{
	"health": true,
	"ready":  true,
	"status": true,
}

// tableSuffixPattern keeps records_<source name> a plain SQL identifier.
var tableSuffixPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SourceConfig names one remote origin.
type SourceConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`     // See source.NewFromURL for accepted forms
	APIKey string `yaml:"api_key"` // Sent as X-API-Key by http sources

	// S3 compatible endpoints only.
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// StoreConfig selects the local store built for every source.
type StoreConfig struct {
	Kind    string `yaml:"kind"`
	LRUSize int    `yaml:"lru_size"`
	Dir     string `yaml:"dir"` // File stores write <dir>/<source name>.yaml
	DSN     string `yaml:"dsn"` // Postgres stores use table records_<source name>
}

type Config struct {
	Sources         []SourceConfig `yaml:"sources"`
	Store           StoreConfig    `yaml:"store"`
	RefreshInterval time.Duration  `yaml:"refresh_interval"`
	FetchTimeout    time.Duration  `yaml:"fetch_timeout"`
	Addr            string         `yaml:"addr"`
	AuthKey         string         `yaml:"auth_key"`
	LogLevel        string         `yaml:"log_level"`
	LogFormat       string         `yaml:"log_format"`
}

// Default returns the configuration used when nothing else is set: one
// static source cached in memory, fetched once.
func Default() *Config {
	return &Config{
		Sources:      []SourceConfig{{Name: "records", URL: "static:"}},
		Store:        StoreConfig{Kind: StoreMemory, LRUSize: 1024, Dir: "data"},
		FetchTimeout: 30 * time.Second,
		Addr:         ":8080",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// at path, then RECORDS_* environment variables (a .env file is loaded
// first when present). Flags are applied by the caller afterwards.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if raw := strings.TrimSpace(os.Getenv("RECORDS_SOURCES")); raw != "" {
		sources, err := ParseSources(raw)
		if err != nil {
			return err
		}
		c.Sources = sources
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_STORE")); v != "" {
		c.Store.Kind = v
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_STORE_DIR")); v != "" {
		c.Store.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_STORE_DSN")); v != "" {
		c.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_LRU_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECORDS_LRU_SIZE: %w", err)
		}
		c.Store.LRUSize = n
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_REFRESH_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RECORDS_REFRESH_INTERVAL: %w", err)
		}
		c.RefreshInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_FETCH_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RECORDS_FETCH_TIMEOUT: %w", err)
		}
		c.FetchTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_ADDR")); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_AUTH_KEY")); v != "" {
		c.AuthKey = v
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("RECORDS_LOG_FORMAT")); v != "" {
		c.LogFormat = v
	}
	return nil
}

// ParseSources reads a comma separated list of name=url pairs.
func ParseSources(raw string) ([]SourceConfig, error) {
	var sources []SourceConfig
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, url, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("source %q: want name=url", part)
		}
		sources = append(sources, SourceConfig{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return sources, nil
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("at least one source is required")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return errors.New("source name is required")
		}
		if strings.ContainsAny(s.Name, "/ ") {
			return fmt.Errorf("source name %q must not contain '/' or spaces", s.Name)
		}
		if reservedNames[s.Name] {
			return fmt.Errorf("source name %q is reserved", s.Name)
		}
		if c.Store.Kind == StorePostgres && !tableSuffixPattern.MatchString(s.Name) {
			return fmt.Errorf("source name %q: postgres stores need letters, digits and '_' only", s.Name)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreLRU:
		if c.Store.LRUSize <= 0 {
			return errors.New("lru store needs a positive lru_size")
		}
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("file store needs a dir")
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return errors.New("postgres store needs a dsn")
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}

	if c.RefreshInterval < 0 {
		return errors.New("refresh_interval must not be negative")
	}
	if c.FetchTimeout < 0 {
		return errors.New("fetch_timeout must not be negative")
	}
	return nil
}

// ConfigureLogging applies LogLevel and LogFormat to the standard logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	switch c.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
