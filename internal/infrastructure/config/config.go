package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	AI       AIConfig       `mapstructure:"ai"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// BackendConfig selects the persistence backend. Mode "auto" picks cloud
// when the database credentials look plausible, local otherwise. The
// decision is made once at process start; changing it requires an
// explicit restart.
type BackendConfig struct {
	Mode    string `mapstructure:"mode"`
	DataDir string `mapstructure:"data_dir"`
}

// DatabaseConfig holds cloud-backend database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode)
}

// Plausible reports whether the credentials are present and syntactically
// usable: required fields non-empty and no field still carrying a
// placeholder token.
func (c DatabaseConfig) Plausible() bool {
	for _, v := range []string{c.Host, c.Name, c.User} {
		if strings.TrimSpace(v) == "" || isPlaceholder(v) {
			return false
		}
	}
	return !isPlaceholder(c.Password)
}

func isPlaceholder(v string) bool {
	upper := strings.ToUpper(v)
	for _, marker := range []string{"CHANGE_ME", "CHANGEME", "YOUR_", "PLACEHOLDER", "INSERT_"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	ExpiresIn time.Duration `mapstructure:"expires_in"`
	Issuer    string        `mapstructure:"issuer"`
}

// AIConfig holds the task-generation collaborator configuration.
type AIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// Enabled reports whether the generator can be called at all.
func (c AIConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != "" && !isPlaceholder(c.APIKey)
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Mode resolves the active backend. Explicit "cloud"/"local" win; "auto"
// falls back to the credential plausibility check.
func (c *Config) Mode() string {
	switch c.Backend.Mode {
	case "cloud", "local":
		return c.Backend.Mode
	}
	if c.Database.Plausible() {
		return "cloud"
	}
	return "local"
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("fasttrack")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "FastTrack")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Backend defaults
	viper.SetDefault("backend.mode", "auto")
	viper.SetDefault("backend.data_dir", "./data")

	// Database defaults
	viper.SetDefault("database.host", "")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "fasttrack")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "30s")

	// JWT defaults
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.expires_in", "24h")
	viper.SetDefault("jwt.issuer", "fasttrack")

	// AI defaults
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "claude-3-5-haiku-latest")
	viper.SetDefault("ai.max_tokens", 1024)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")

	// Security defaults
	viper.SetDefault("security.cors_allowed_origins", "*")
	viper.SetDefault("security.rate_limit_requests", 100)
	viper.SetDefault("security.rate_limit_window", "1m")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Backend.Mode {
	case "auto", "cloud", "local":
	default:
		return fmt.Errorf("backend mode must be auto, cloud or local, got %q", cfg.Backend.Mode)
	}

	if cfg.Mode() == "cloud" && !cfg.Database.Plausible() {
		return fmt.Errorf("cloud backend requested but database credentials are missing or placeholders")
	}

	if cfg.Mode() == "cloud" && strings.TrimSpace(cfg.JWT.Secret) == "" {
		return fmt.Errorf("jwt secret is required in cloud mode")
	}

	if cfg.Backend.Mode == "local" || cfg.Mode() == "local" {
		if strings.TrimSpace(cfg.Backend.DataDir) == "" {
			return fmt.Errorf("backend data_dir is required in local mode")
		}
	}

	return nil
}
