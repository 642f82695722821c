package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/llm-router/services/providers"
)

// DefaultModel is used when no model list is configured
const DefaultModel = "anthropic/claude-opus-4-5"

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: dispatch audit store. When nil, audit events are only logged.
	Router        RouterConfig
	Providers     map[string]ProviderConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration

	// Retention is how long dispatch events are kept; 0 keeps them forever
	Retention       time.Duration
	CleanupInterval time.Duration
}

// RouterConfig holds fallback dispatch configuration
type RouterConfig struct {
	// Models are tried in order when a request names no model
	Models []string

	// DefaultModel is used when Models is empty
	DefaultModel string

	// MaxTokens is the default completion limit
	MaxTokens int

	// Temperature is the default sampling temperature
	Temperature float64

	// BackendTimeout bounds each backend call
	BackendTimeout time.Duration

	// ConfigFile is the optional providers file read at startup
	ConfigFile string
}

// ProviderConfig holds credentials and endpoint settings for one provider
type ProviderConfig struct {
	APIKey       string            `mapstructure:"api_key"`
	APIBase      string            `mapstructure:"api_base"`
	ExtraHeaders map[string]string `mapstructure:"extra_headers"`
	Keywords     []string          `mapstructure:"keywords"`
}

// AuthConfig holds gateway authentication configuration
type AuthConfig struct {
	// JWTSecret enables HS256 bearer authentication when set
	JWTSecret string
	Issuer    string
}

// ObservabilityConfig holds logging and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool   // serve prometheus metrics on /metrics
}

// New creates a new Config instance by loading environment variables and the
// optional providers file
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 180*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Router: RouterConfig{
			Models:         getEnvAsList("ROUTER_MODELS"),
			DefaultModel:   getEnv("ROUTER_DEFAULT_MODEL", DefaultModel),
			MaxTokens:      getEnvAsInt("ROUTER_MAX_TOKENS", 4096),
			Temperature:    getEnvAsFloat("ROUTER_TEMPERATURE", 0.7),
			BackendTimeout: getEnvAsDuration("ROUTER_BACKEND_TIMEOUT", 120*time.Second),
			ConfigFile:     getEnv("ROUTER_CONFIG_FILE", ""),
		},
		Providers: make(map[string]ProviderConfig),
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if cfg.Router.ConfigFile != "" {
		file, err := LoadProvidersFile(cfg.Router.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load providers file: %w", err)
		}
		cfg.ApplyFile(file)
	}

	cfg.applyProviderEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ApplyFile merges a providers file into the configuration. Environment settings
// applied afterwards take precedence.
func (c *Config) ApplyFile(file *FileConfig) {
	if file == nil {
		return
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for name, p := range file.Providers {
		c.Providers[normalizeProviderName(name)] = p
	}
	if len(file.Router.Models) > 0 && len(c.Router.Models) == 0 {
		c.Router.Models = file.Router.Models
	}
	if file.Router.DefaultModel != "" && os.Getenv("ROUTER_DEFAULT_MODEL") == "" {
		c.Router.DefaultModel = file.Router.DefaultModel
	}
}

// applyProviderEnv reads <NAME>_API_KEY / <NAME>_API_BASE for every known provider
func (c *Config) applyProviderEnv() {
	names := []string{providers.ProviderCustom}
	for _, spec := range providers.Specs() {
		names = append(names, spec.Name)
	}

	for _, name := range names {
		prefix := strings.ToUpper(name)
		key := os.Getenv(prefix + "_API_KEY")
		base := os.Getenv(prefix + "_API_BASE")
		if key == "" && base == "" {
			continue
		}
		p := c.Providers[name]
		if key != "" {
			p.APIKey = key
		}
		if base != "" {
			p.APIBase = base
		}
		c.Providers[name] = p
	}
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	for i, m := range c.Router.Models {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("router model %d is empty", i)
		}
	}

	if len(c.Router.Models) == 0 && c.Router.DefaultModel == "" {
		return fmt.Errorf("router default model is required when no models are configured")
	}

	if c.IsProduction() && len(c.Providers) == 0 {
		return fmt.Errorf("at least one LLM provider must be configured in production")
	}

	if c.Database != nil && c.Database.ConnectionString != "" {
		if _, err := url.Parse(c.Database.ConnectionString); err != nil {
			return fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// ProviderNameFor returns the logical provider serving model, or "" when none matches
func (c *Config) ProviderNameFor(model string) string {
	if strings.HasPrefix(model, "openai-codex/") {
		return providers.ProviderOpenAICodex
	}

	if i := strings.Index(model, "/"); i > 0 {
		prefix := normalizeProviderName(model[:i])
		if _, ok := c.Providers[prefix]; ok {
			return prefix
		}
		if _, ok := providers.FindSpec(prefix); ok {
			return prefix
		}
	}

	lower := strings.ToLower(model)
	names := c.providerNames()
	for _, name := range names {
		keywords := c.Providers[name].Keywords
		if len(keywords) == 0 {
			if spec, ok := providers.FindSpec(name); ok {
				keywords = spec.Keywords
			}
		}
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return name
			}
		}
	}

	if spec, ok := providers.MatchSpec(model); ok {
		return spec.Name
	}

	for _, name := range names {
		if c.Providers[name].APIKey != "" {
			return name
		}
	}

	return ""
}

// ProviderConfigFor returns the settings of the provider serving model
func (c *Config) ProviderConfigFor(model string) providers.ProviderSettings {
	p, ok := c.Providers[c.ProviderNameFor(model)]
	if !ok {
		return providers.ProviderSettings{}
	}
	return providers.ProviderSettings{
		APIKey:       p.APIKey,
		APIBase:      p.APIBase,
		ExtraHeaders: p.ExtraHeaders,
	}
}

// providerNames returns configured provider names in a stable order
func (c *Config) providerNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// loadDatabaseConfig loads database config from DATABASE_URL.
// Returns nil when not set (audit events are only logged).
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		Retention:        getEnvAsDuration("AUDIT_RETENTION", 30*24*time.Hour),
		CleanupInterval:  getEnvAsDuration("AUDIT_CLEANUP_INTERVAL", time.Hour),
	}
}

func normalizeProviderName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
