package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Storage  StorageConfig  `json:"storage"`
	Issuance IssuanceConfig `json:"issuance"`
	Worker   WorkerConfig   `json:"worker"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	MigrationsPath string        `json:"migrations_path"`
}

// StorageConfig selects the backing store. "postgres" is the durable
// default; "memory" must be opted into explicitly and is never used as a
// fallback when the database is unreachable.
type StorageConfig struct {
	Driver string `json:"driver"`
}

// IssuanceConfig holds the credit issuance parameters. The defaults match
// the published methodology; they are configuration, not physical truths.
type IssuanceConfig struct {
	CO2KgPerTreeYear  float64 `json:"co2_kg_per_tree_year"`
	BasePrice         float64 `json:"base_price"`
	PriceFloorFactor  float64 `json:"price_floor_factor"`
	PriceSpanFactor   float64 `json:"price_span_factor"`
	DefaultFinalScore float64 `json:"default_final_score"`
}

// WorkerConfig configures the snapshot worker
type WorkerConfig struct {
	SnapshotSchedule string `json:"snapshot_schedule"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from .env, an optional JSON file and
// environment variables, in that order of precedence (env wins).
func LoadConfig(configPath string) (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "ecoledger",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MigrationsPath: "migrations",
		},
		Storage: StorageConfig{
			Driver: "postgres",
		},
		Issuance: IssuanceConfig{
			CO2KgPerTreeYear:  12.3,
			BasePrice:         15.00,
			PriceFloorFactor:  0.8,
			PriceSpanFactor:   0.4,
			DefaultFinalScore: 70,
		},
		Worker: WorkerConfig{
			SnapshotSchedule: "@every 1m",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = driver
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if schedule := os.Getenv("SNAPSHOT_SCHEDULE"); schedule != "" {
		config.Worker.SnapshotSchedule = schedule
	}
}

// Validate rejects configurations that would corrupt issuance math.
func (c *Config) Validate() error {
	if c.Storage.Driver != "postgres" && c.Storage.Driver != "memory" {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Issuance.CO2KgPerTreeYear <= 0 {
		return fmt.Errorf("co2_kg_per_tree_year must be positive")
	}
	if c.Issuance.BasePrice <= 0 {
		return fmt.Errorf("base_price must be positive")
	}
	if c.Issuance.DefaultFinalScore < 0 || c.Issuance.DefaultFinalScore > 100 {
		return fmt.Errorf("default_final_score must be in [0,100]")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
