package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// Defaults of the remote inference API.
const (
	DefaultAPIServer  = "https://api.mistral.ai/v1/chat/completions"
	DefaultAPIModel   = "mistral-small-latest"
	DefaultLocalURL   = "http://localhost:11434"
	DefaultLocalModel = "mistral-small3.1"
)

// Config holds the docscan service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Backend  BackendConfig  `yaml:"backend"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cache    CacheConfig    `yaml:"cache"`
	Report   ReportConfig   `yaml:"report"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int64 `yaml:"max_upload_mb"`
}

// BackendConfig selects and configures the model backend.
type BackendConfig struct {
	Mode  domain.Mode `yaml:"mode"` // api | local
	API   APIConfig   `yaml:"api"`
	Local LocalConfig `yaml:"local"`
}

// APIConfig holds the remote OpenAI-compatible endpoint settings.
type APIConfig struct {
	Server     string `yaml:"server"` // full chat completions endpoint
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	PoolSize   int    `yaml:"pool_size"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// LocalConfig holds the local (Ollama) backend settings.
type LocalConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// PipelineConfig holds page pipeline settings.
type PipelineConfig struct {
	DPI                  int     `yaml:"dpi"`
	PageLimit            int     `yaml:"page_limit"` // 0 = all pages
	RoutingPageThreshold int     `yaml:"routing_page_threshold"`
	RoutingPoolCap       int     `yaml:"routing_pool_cap"`
	MinConfidence        float64 `yaml:"min_confidence"`
	TempDir              string  `yaml:"temp_dir"`
	ScanPageLimit        int     `yaml:"scan_page_limit"`
	Pdftoppm             string  `yaml:"pdftoppm"`
	InputDir             string  `yaml:"input_dir"` // root for local paths named in JSON requests
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ReportConfig holds report persistence settings.
type ReportConfig struct {
	Dir  string `yaml:"dir"` // empty = reports are not written
	XLSX bool   `yaml:"xlsx"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// запрос ждёт весь прогон
		c.HTTP.WriteTimeoutSec = 600
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 64
	}

	if c.Backend.Mode == "" {
		c.Backend.Mode = domain.ModeAPI
	}
	if c.Backend.API.Server == "" {
		c.Backend.API.Server = DefaultAPIServer
	}
	if c.Backend.API.Model == "" {
		c.Backend.API.Model = DefaultAPIModel
	}
	if c.Backend.API.PoolSize == 0 {
		c.Backend.API.PoolSize = domain.DefaultPoolSize
	}
	c.Backend.API.PoolSize = domain.ClampPoolSize(c.Backend.API.PoolSize)
	if c.Backend.API.TimeoutSec <= 0 {
		c.Backend.API.TimeoutSec = 60
	}
	if c.Backend.API.MaxTokens <= 0 {
		c.Backend.API.MaxTokens = 16384
	}

	if c.Backend.Local.BaseURL == "" {
		c.Backend.Local.BaseURL = DefaultLocalURL
	}
	if c.Backend.Local.Model == "" {
		c.Backend.Local.Model = DefaultLocalModel
	}
	if c.Backend.Local.MaxTokens <= 0 {
		c.Backend.Local.MaxTokens = 16384
	}
	if c.Backend.Local.TimeoutSec <= 0 {
		c.Backend.Local.TimeoutSec = 300
	}

	if c.Pipeline.DPI <= 0 {
		c.Pipeline.DPI = 300
	}
	if c.Pipeline.RoutingPageThreshold <= 0 {
		c.Pipeline.RoutingPageThreshold = 5
	}
	if c.Pipeline.RoutingPoolCap <= 0 {
		c.Pipeline.RoutingPoolCap = 3
	}
	if c.Pipeline.ScanPageLimit <= 0 {
		c.Pipeline.ScanPageLimit = 5
	}
	if c.Pipeline.TempDir == "" {
		c.Pipeline.TempDir = os.TempDir()
	}
	if c.Pipeline.Pdftoppm == "" {
		c.Pipeline.Pdftoppm = "pdftoppm"
	}

	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if !c.Backend.Mode.Valid() {
		return fmt.Errorf("backend.mode must be \"api\" or \"local\", got %q", c.Backend.Mode)
	}
	if p := c.Backend.API.PoolSize; p < domain.MinPoolSize || p > domain.MaxPoolSize {
		return fmt.Errorf("backend.api.pool_size must be between %d and %d, got %d",
			domain.MinPoolSize, domain.MaxPoolSize, p)
	}
	if c.Backend.Mode == domain.ModeAPI {
		if strings.TrimSpace(c.Backend.API.Server) == "" {
			return fmt.Errorf("backend.api.server is required in api mode")
		}
		if c.Backend.API.APIKey == "" && !c.IsLocalServer() {
			return fmt.Errorf("backend.api.api_key is required for non-local server %s", c.Backend.API.Server)
		}
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence >= 1 {
		return fmt.Errorf("pipeline.min_confidence must be in [0,1), got %v", c.Pipeline.MinConfidence)
	}
	if c.Pipeline.PageLimit < 0 {
		return fmt.Errorf("pipeline.page_limit must not be negative, got %d", c.Pipeline.PageLimit)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	return nil
}

// APIBaseURL returns the OpenAI client base URL derived from the full endpoint.
func (c *Config) APIBaseURL() string {
	server := strings.TrimRight(c.Backend.API.Server, "/")
	return strings.TrimSuffix(server, "/chat/completions")
}

// IsLocalServer reports whether the API server points at this machine.
func (c *Config) IsLocalServer() bool {
	return domain.IsLocalEndpoint(c.Backend.API.Server)
}

// APIKeyPreview masks the API key for display: first 4 and last 4
// characters. Short keys keep only their first 4; an unset key is "".
func (c *Config) APIKeyPreview() string {
	key := c.Backend.API.APIKey
	switch {
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	case len(key) > 4:
		return key[:4] + "..."
	default:
		return ""
	}
}

// PoolSize returns the effective pool size for the configured mode.
func (c *Config) PoolSize() int {
	if c.Backend.Mode == domain.ModeLocal {
		return 1
	}
	return c.Backend.API.PoolSize
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
