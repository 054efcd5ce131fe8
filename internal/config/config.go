package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// SweepInterval is the period of the pending-operation replay sweeper.
	SweepInterval time.Duration

	// KafkaBrokerURL enables the ledger event stream when non-empty.
	KafkaBrokerURL   string
	KafkaLedgerTopic string
	MigrationsDir    string
}

func Load() *Config {
	return &Config{
		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),

		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvAsInt("DB_PORT", 5432),
		DBUser:     getEnvOrDefault("DB_USER", "postgres"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", "password"),
		DBName:     getEnvOrDefault("DB_NAME", "banking_ledger"),
		DBSSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),

		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", 5*time.Second),

		KafkaBrokerURL:   getEnvOrDefault("KAFKA_BROKER_URL", ""),
		KafkaLedgerTopic: getEnvOrDefault("KAFKA_LEDGER_TOPIC", "ledger_history_events"),
		MigrationsDir:    getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
	}
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
