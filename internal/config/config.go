package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		Name        string
		Port        string
		Debug       bool
		FrontendURL string
		LogLevel    string
		LogFormat   string
	}
	DB struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Redis struct {
		Enabled     bool
		Host        string
		Port        string
		Password    string
		DB          int
		SnapshotTTL time.Duration
	}
	Parser struct {
		Strict bool
	}
	Ingest struct {
		RequestsPerSecond int
		Burst             int
	}
	MQTT struct {
		Enabled         bool
		Broker          string
		ClientID        string
		Username        string
		Password        string
		TopicDelimited  string
		TopicStructured string
		QoS             int
	}
	Auth struct {
		UsersFile          string
		SuperadminPassword string
	}
	Workers struct {
		SimulatorEnabled    bool
		SimulatorInterval   time.Duration
		CacheWarmerEnabled  bool
		CacheWarmerInterval time.Duration
	}
	Telemetry struct {
		OutputDir    string
		HistoryLimit int
		MaxHistory   int
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Name = getEnv("APP_NAME", "groundstation")
	cfg.App.Port = getEnv("PORT", "5000")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")
	cfg.App.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.App.LogFormat = getEnv("LOG_FORMAT", "json")

	// DB
	cfg.DB.Driver = strings.ToLower(getEnv("DB_DRIVER", "postgres"))
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "telemetry")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Redis
	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", true)
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)
	cfg.Redis.SnapshotTTL = getEnvAsDuration("REDIS_SNAPSHOT_TTL", 30*time.Second)

	// Parser
	cfg.Parser.Strict = getEnvAsBool("PARSER_STRICT", true)

	// Ingest rate limit
	cfg.Ingest.RequestsPerSecond = getEnvAsInt("INGEST_RATE_LIMIT_RPS", 20)
	cfg.Ingest.Burst = getEnvAsInt("INGEST_RATE_LIMIT_BURST", 40)

	// MQTT
	cfg.MQTT.Enabled = getEnvAsBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "groundstation")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.TopicDelimited = getEnv("MQTT_TOPIC_DELIMITED", "telemetry/lora")
	cfg.MQTT.TopicStructured = getEnv("MQTT_TOPIC_STRUCTURED", "telemetry/gps")
	cfg.MQTT.QoS = getEnvAsInt("MQTT_QOS", 1)

	// Auth
	cfg.Auth.UsersFile = getEnv("USERS_FILE", "./data/users.json")
	cfg.Auth.SuperadminPassword = getEnv("SUPERADMIN_PASSWORD", "admin123")

	// Workers
	cfg.Workers.SimulatorEnabled = getEnvAsBool("SIMULATOR_ENABLED", false)
	cfg.Workers.SimulatorInterval = getEnvAsDuration("WORKER_SIMULATOR_INTERVAL", time.Second)
	cfg.Workers.CacheWarmerEnabled = getEnvAsBool("CACHE_WARMER_ENABLED", true)
	cfg.Workers.CacheWarmerInterval = getEnvAsDuration("WORKER_CACHE_WARMER_INTERVAL", 15*time.Second)

	// Telemetry
	cfg.Telemetry.OutputDir = getEnv("TELEMETRY_OUTPUT_DIR", "./data/telemetry")
	cfg.Telemetry.HistoryLimit = getEnvAsInt("TELEMETRY_HISTORY_LIMIT", 100)
	cfg.Telemetry.MaxHistory = getEnvAsInt("TELEMETRY_MAX_HISTORY", 1000)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}

const redacted = "********"

// Redacted returns a copy of c with secrets masked, for printing.
func (c *Config) Redacted() *Config {
	out := *c
	if out.DB.Password != "" {
		out.DB.Password = redacted
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redacted
	}
	if out.MQTT.Password != "" {
		out.MQTT.Password = redacted
	}
	if out.Auth.SuperadminPassword != "" {
		out.Auth.SuperadminPassword = redacted
	}
	return &out
}
