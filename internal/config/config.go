package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Cache    Cache    `mapstructure:"cache"`
	Auth     Auth     `mapstructure:"auth"`
	PostHog  PostHog  `mapstructure:"posthog"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug bool   `mapstructure:"debug"`
	Name  string `mapstructure:"name"`
}

// AI holds text-generation provider configuration
type AI struct {
	Active    string                    `mapstructure:"active"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Analysis  Generation                `mapstructure:"analysis"`
	Narrative Generation                `mapstructure:"narrative"`
	Title     Generation                `mapstructure:"title"`
}

// ProviderConfig describes one OpenAI-compatible chat-completions backend
type ProviderConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	Reasoning bool   `mapstructure:"reasoning"` // Model separates reasoning_content from content
}

// Generation holds per-task generation parameters
type Generation struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     string  `mapstructure:"timeout"`
}

// TimeoutDuration returns the parsed timeout, or zero when unset.
// Values are validated at load time.
func (g Generation) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(g.Timeout)
	return d
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin settings
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Database holds record store configuration
type Database struct {
	Driver string `mapstructure:"driver"` // postgres or memory
	URL    string `mapstructure:"url"`
}

// Cache holds the analysis result cache configuration
type Cache struct {
	Enabled bool   `mapstructure:"enabled"`
	Size    int    `mapstructure:"size"`
	TTL     string `mapstructure:"ttl"`
}

// TTLDuration returns the parsed cache TTL
func (c Cache) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// Auth holds identity configuration
type Auth struct {
	Issuer        string `mapstructure:"issuer"`
	ClientID      string `mapstructure:"client_id"`
	DevUserHeader string `mapstructure:"dev_user_header"` // Trusted only when no issuer is configured
}

// PostHog holds product analytics configuration
type PostHog struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

// Metrics holds Prometheus configuration
type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".innersight")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.name", "innersight")
	viper.SetDefault("app.debug", false)

	viper.SetDefault("ai.active", "deepseek")
	viper.SetDefault("ai.providers.deepseek.endpoint", "https://api.deepseek.com/chat/completions")
	viper.SetDefault("ai.providers.deepseek.model", "deepseek-reasoner")
	viper.SetDefault("ai.providers.deepseek.reasoning", true)
	viper.SetDefault("ai.providers.openai.endpoint", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("ai.providers.openai.model", "gpt-4o-mini")
	viper.SetDefault("ai.providers.openai.reasoning", false)

	viper.SetDefault("ai.analysis.temperature", 0.3)
	viper.SetDefault("ai.analysis.max_tokens", 2000)
	viper.SetDefault("ai.analysis.timeout", "60s")
	viper.SetDefault("ai.narrative.temperature", 0.7)
	viper.SetDefault("ai.narrative.max_tokens", 500)
	viper.SetDefault("ai.narrative.timeout", "30s")
	viper.SetDefault("ai.title.temperature", 0.5)
	viper.SetDefault("ai.title.max_tokens", 30)
	viper.SetDefault("ai.title.timeout", "15s")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "90s")
	viper.SetDefault("server.cors.enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{"*"})

	viper.SetDefault("database.driver", "memory")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.size", 256)
	viper.SetDefault("cache.ttl", "10m")

	viper.SetDefault("auth.dev_user_header", "X-User-ID")

	viper.SetDefault("posthog.enabled", false)
	viper.SetDefault("posthog.host", "https://us.i.posthog.com")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.providers.deepseek.api_key", []string{
		"DEEPSEEK_API_KEY",
		"DEEPSEEK_KEY",
	})

	bindEnvKeys("ai.providers.openai.api_key", []string{
		"OPENAI_API_KEY",
	})

	bindEnvKeys("ai.active", []string{
		"INNERSIGHT_PROVIDER",
		"AI_PROVIDER",
	})

	bindEnvKeys("database.url", []string{
		"DATABASE_URL",
		"POSTGRES_URL",
	})

	bindEnvKeys("posthog.api_key", []string{
		"POSTHOG_API_KEY",
		"POSTHOG_KEY",
	})

	bindEnvKeys("auth.issuer", []string{
		"OIDC_ISSUER",
		"AUTH_ISSUER",
	})

	bindEnvKeys("auth.client_id", []string{
		"OIDC_CLIENT_ID",
		"AUTH_CLIENT_ID",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"INNERSIGHT_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	config.AI.Active = strings.ToLower(strings.TrimSpace(config.AI.Active))
	config.Database.Driver = strings.ToLower(strings.TrimSpace(config.Database.Driver))
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))

	durations := map[string]string{
		"ai.analysis.timeout":  config.AI.Analysis.Timeout,
		"ai.narrative.timeout": config.AI.Narrative.Timeout,
		"ai.title.timeout":     config.AI.Title.Timeout,
		"cache.ttl":            config.Cache.TTL,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// validateConfig ensures required configuration is present
func validateConfig(config *Config) error {
	var errors []string

	if len(config.AI.Providers) == 0 {
		errors = append(errors, "At least one AI provider must be configured under ai.providers")
	} else if _, ok := config.AI.Providers[config.AI.Active]; !ok {
		errors = append(errors, fmt.Sprintf("Active AI provider %q is not configured. Known providers: %s",
			config.AI.Active, strings.Join(ProviderIDs(config), ", ")))
	}

	for id, p := range config.AI.Providers {
		if p.Model == "" {
			errors = append(errors, fmt.Sprintf("ai.providers.%s.model is required", id))
		}
		u, err := url.Parse(p.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("ai.providers.%s.endpoint must be an absolute URL, got %q", id, p.Endpoint))
		}
	}

	switch config.Database.Driver {
	case "memory":
	case "postgres":
		if config.Database.URL == "" {
			errors = append(errors, "Postgres record store requires a connection URL. Set DATABASE_URL or database.url")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown database driver: %s. Supported: postgres, memory", config.Database.Driver))
	}

	if config.Cache.Enabled && config.Cache.Size <= 0 {
		errors = append(errors, "cache.size must be positive when the cache is enabled")
	}

	if config.PostHog.Enabled && !isValidAPIKey(config.PostHog.APIKey) {
		errors = append(errors, "PostHog is enabled but no API key is set. Set POSTHOG_API_KEY or posthog.api_key")
	}

	if config.Auth.Issuer != "" && config.Auth.ClientID == "" {
		errors = append(errors, "auth.client_id is required when auth.issuer is set")
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("Unknown log level: %s. Supported: debug, info, warn, error", config.Logging.Level))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ProviderIDs returns the configured provider ids in sorted order
func ProviderIDs(config *Config) []string {
	ids := make([]string, 0, len(config.AI.Providers))
	for id := range config.AI.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCredential reports whether the provider has a usable API key
func (c *Config) HasCredential(providerID string) bool {
	p, ok := c.AI.Providers[providerID]
	return ok && isValidAPIKey(p.APIKey)
}

// Convenience getters
func GetAI() AI           { return Get().AI }
func GetServer() Server   { return Get().Server }
func GetLogging() Logging { return Get().Logging }
func GetPostHog() PostHog { return Get().PostHog }
func IsDebugMode() bool   { return Get().App.Debug }

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-openai-key", "your-deepseek-key", "your-posthog-key",
		"YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
