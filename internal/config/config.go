package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend drivers.
const (
	DriverHTTP  = "http"
	DriverBleve = "bleve"
)

// Object store drivers.
const (
	ObjectsNone   = "none"
	ObjectsRedis  = "redis"
	ObjectsSQLite = "sqlite"
)

// Config holds the searchkit configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Search  SearchConfig  `yaml:"search"`
	Objects ObjectsConfig `yaml:"objects"`
	Logging LoggingConfig `yaml:"logging"`
	Auth    AuthConfig    `yaml:"auth"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"` // empty disables authentication
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig selects the search engine.
type BackendConfig struct {
	Driver          string   `yaml:"driver"` // http, bleve (default: http)
	Hosts           []string `yaml:"hosts"`
	DataDir         string   `yaml:"data_dir"` // bleve write-ahead log; empty keeps indexes in memory only
	TimeoutSec      int      `yaml:"timeout_sec"`
	DefaultIndexes  []string `yaml:"default_indexes"`
	DefaultDoctypes []string `yaml:"default_doctypes"`
}

// Timeout returns the request timeout as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSec) * time.Second
}

// SearchConfig holds query building settings.
type SearchConfig struct {
	ActionDelimiter string `yaml:"action_delimiter"`
	// Debug records every search in the request-scoped query log.
	Debug bool `yaml:"debug"`
}

// ObjectsConfig selects where domain objects behind hits are stored.
type ObjectsConfig struct {
	Driver    string   `yaml:"driver"` // none, redis, sqlite (default: none)
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	KeyPrefix string   `yaml:"key_prefix"`
	TTLSec    int      `yaml:"ttl_sec"` // redis only; 0 keeps objects forever
	DSN       string   `yaml:"dsn"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverHTTP
	}
	if c.Backend.Driver == DriverHTTP && len(c.Backend.Hosts) == 0 {
		c.Backend.Hosts = []string{"localhost:9200"}
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 5
	}
	if c.Search.ActionDelimiter == "" {
		c.Search.ActionDelimiter = "__"
	}
	if c.Objects.Driver == "" {
		c.Objects.Driver = ObjectsNone
	}
	if c.Objects.KeyPrefix == "" {
		c.Objects.KeyPrefix = "searchkit:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Backend.Driver {
	case DriverHTTP:
		if len(c.Backend.Hosts) == 0 {
			return fmt.Errorf("backend.hosts is required for the http driver")
		}
	case DriverBleve:
		// in-process
	default:
		return fmt.Errorf("backend.driver must be \"http\" or \"bleve\", got %q", c.Backend.Driver)
	}
	switch c.Objects.Driver {
	case ObjectsNone:
	case ObjectsRedis:
		if len(c.Objects.Addrs) == 0 {
			return fmt.Errorf("objects.addrs is required for the redis driver")
		}
		if c.Objects.TTLSec < 0 {
			return fmt.Errorf("objects.ttl_sec must be >= 0, got %d", c.Objects.TTLSec)
		}
	case ObjectsSQLite:
		if c.Objects.DSN == "" {
			return fmt.Errorf("objects.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("objects.driver must be \"none\", \"redis\" or \"sqlite\", got %q", c.Objects.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
