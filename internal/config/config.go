// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// Config holds the settings of the contacts service.
type Config struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBName     string
	Port       int
	// GinLogging is false if HTTP request logging is turned off.
	GinLogging bool
	// LogMode is either "production" or "development".
	LogMode string
}

// Load reads the configuration from the system's environment variables.
//
// Usage example:
// > export DBHOST=localhost:3306 && export DBUSER=dirk && export DBPWD=bullo92 && export PORT=8080
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("could not parse PORT env variable: %w", err)
	}
	return &Config{
		DBUser:     os.Getenv("DBUSER"),
		DBPassword: os.Getenv("DBPWD"),
		DBHost:     getEnv("DBHOST", "localhost:3306"),
		DBName:     getEnv("DBNAME", "test"),
		Port:       port,
		GinLogging: !strings.EqualFold(os.Getenv("GIN_LOGGING"), "off"),
		LogMode:    getEnv("LOG_MODE", "development"),
	}, nil
}

// DSN returns the data source name for the MySQL driver.
func (c *Config) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.DBUser
	cfg.Passwd = c.DBPassword
	cfg.Net = "tcp"
	cfg.Addr = c.DBHost
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// NewLogger builds a zap logger for the given mode. Anything but "production" or "prod" yields a
// development logger.
func NewLogger(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
