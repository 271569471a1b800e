package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Checker  CheckerConfig
	Registry RegistryConfig
	Sweep    SweepConfig
	Redis    RedisConfig
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host        string
	Port        int
	MetricsPort int // Port for the Prometheus metrics HTTP server
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// CacheConfig represents decision cache configuration
type CacheConfig struct {
	Enabled    bool
	MaxEntries int
	TTLSeconds int // Time-to-live for cached decisions in seconds
	Metrics    bool
}

// CheckerConfig represents permission checker configuration
type CheckerConfig struct {
	BulkLimit int // Maximum number of checks in one bulk request
}

// RegistryConfig represents permission registry configuration
type RegistryConfig struct {
	Path string // YAML registry file; empty uses the built-in catalog
}

// SweepConfig represents the expiry sweep job configuration
type SweepConfig struct {
	Enabled  bool
	Schedule string // cron expression
}

// RedisConfig represents the optional invalidation fan-out configuration
type RedisConfig struct {
	Enabled bool
	Addr    string
	Channel string
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root directory
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	// Find project root
	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	// Set config file name based on environment
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot) // Project root

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("METRICS_PORT", 9090)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "lyceum")
	viper.SetDefault("DB_NAME", "lyceum_dev")
	viper.SetDefault("DB_SSLMODE", "disable")

	// Decision cache defaults
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_MAX_ENTRIES", 100000)
	viper.SetDefault("CACHE_TTL_SECONDS", 300) // 5 minutes
	viper.SetDefault("CACHE_METRICS", true)

	// Checker defaults
	viper.SetDefault("CHECKER_BULK_LIMIT", 100)

	// Registry defaults (empty path = built-in catalog)
	viper.SetDefault("REGISTRY_PATH", "")

	// Expiry sweep defaults
	viper.SetDefault("SWEEP_ENABLED", true)
	viper.SetDefault("SWEEP_SCHEDULE", "*/5 * * * *")

	// Invalidation fan-out defaults
	viper.SetDefault("REDIS_ENABLED", false)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_CHANNEL", "lyceum:invalidations")

	return nil
}

// Load loads configuration from viper
func Load() (*Config, error) {
	// DB_PASSWORD is required for security
	dbPassword := viper.GetString("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
	}

	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			Port:        viper.GetInt("SERVER_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: dbPassword,
			Database: viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:    viper.GetBool("CACHE_ENABLED"),
			MaxEntries: viper.GetInt("CACHE_MAX_ENTRIES"),
			TTLSeconds: viper.GetInt("CACHE_TTL_SECONDS"),
			Metrics:    viper.GetBool("CACHE_METRICS"),
		},
		Checker: CheckerConfig{
			BulkLimit: viper.GetInt("CHECKER_BULK_LIMIT"),
		},
		Registry: RegistryConfig{
			Path: viper.GetString("REGISTRY_PATH"),
		},
		Sweep: SweepConfig{
			Enabled:  viper.GetBool("SWEEP_ENABLED"),
			Schedule: viper.GetString("SWEEP_SCHEDULE"),
		},
		Redis: RedisConfig{
			Enabled: viper.GetBool("REDIS_ENABLED"),
			Addr:    viper.GetString("REDIS_ADDR"),
			Channel: viper.GetString("REDIS_CHANNEL"),
		},
	}

	return config, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}
