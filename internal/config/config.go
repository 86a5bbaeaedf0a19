package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Provider exposes the configuration values the rest of the application reads.
type Provider interface {
	GetServerAddr() string
	GetWSPath() string
	GetAllowedOrigins() []string
	GetInboundRate() float64
	GetInboundBurst() int

	GetClientWSURL() string
	GetClientRetryBackoff() time.Duration
	GetClientShutdownGrace() time.Duration
	GetClientLockTimeout() time.Duration

	GetHistoryCapacity() int
	GetHistoryPageSize() int
	GetHistorySnapshotPath() string

	GetDirectoryBackend() string
	GetSeedUsers() []string
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetDBQueryTimeout() time.Duration

	GetLogFormat() string
	GetLogLevel() string

	GetTracingEnabled() bool
	GetTracingServiceName() string
	GetTracingZipkinURL() string
}

// Directory backends.
const (
	BackendMemory  = "memory"
	BackendSurreal = "surreal"
)

// Config holds all configuration for the application.
type Config struct {
	ServerAddr     string `validate:"required"`
	WSPath         string `validate:"required,startswith=/"`
	AllowedOrigins []string
	InboundRate    float64 `validate:"gt=0"`
	InboundBurst   int     `validate:"gt=0"`

	ClientWSURL         string        `validate:"required,url"`
	ClientRetryBackoff  time.Duration `validate:"gt=0"`
	ClientShutdownGrace time.Duration `validate:"gt=0"`
	ClientLockTimeout   time.Duration `validate:"gt=0"`

	HistoryCapacity     int `validate:"gte=10"`
	HistoryPageSize     int `validate:"gt=0"`
	HistorySnapshotPath string

	DirectoryBackend string `validate:"oneof=memory surreal"`
	SeedUsers        []string
	DBUrl            string `validate:"required_if=DirectoryBackend surreal"`
	DBNs             string `validate:"required_if=DirectoryBackend surreal"`
	DBDb             string `validate:"required_if=DirectoryBackend surreal"`
	DBUser           string
	DBPass           string
	DBQueryTimeout   time.Duration `validate:"gt=0"`

	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`

	TracingEnabled     bool
	TracingServiceName string
	TracingZipkinURL   string `validate:"required_if=TracingEnabled true"`
}

var validate = validator.New()

// New loads configuration from the environment, reading a .env file first
// when one is present. Invalid configuration is fatal.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Load reads and validates the configuration without touching .env files.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:     getString("SERVER_ADDR", ":8080"),
		WSPath:         getString("WS_PATH", "/ws"),
		AllowedOrigins: getList("WS_ALLOWED_ORIGINS"),
		InboundRate:    getFloat("INBOUND_RATE", 5),
		InboundBurst:   getInt("INBOUND_BURST", 10),

		ClientWSURL:         getString("CLIENT_WS_URL", "ws://localhost:8080/ws"),
		ClientRetryBackoff:  getDuration("CLIENT_RETRY_BACKOFF", 30*time.Second),
		ClientShutdownGrace: getDuration("CLIENT_SHUTDOWN_GRACE", 10*time.Second),
		ClientLockTimeout:   getDuration("CLIENT_LOCK_TIMEOUT", 5*time.Second),

		HistoryCapacity:     getInt("HISTORY_CAPACITY", 1000),
		HistoryPageSize:     getInt("HISTORY_PAGE_SIZE", 20),
		HistorySnapshotPath: os.Getenv("HISTORY_SNAPSHOT_PATH"),

		DirectoryBackend: strings.ToLower(getString("DIRECTORY_BACKEND", BackendMemory)),
		SeedUsers:        getList("SEED_USERS"),
		DBUrl:            os.Getenv("SURREAL_URL"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		DBQueryTimeout:   getDuration("SURREAL_QUERY_TIMEOUT", 5*time.Second),

		LogFormat: strings.ToLower(getString("LOG_FORMAT", "text")),
		LogLevel:  strings.ToLower(getString("LOG_LEVEL", "info")),

		TracingEnabled:     getBool("PUBSUB_TRACING_ENABLED", false),
		TracingServiceName: getString("PUBSUB_TRACING_SERVICE_NAME", "chatline"),
		TracingZipkinURL:   getString("PUBSUB_TRACING_ZIPKIN_URL", "http://localhost:9411/api/v2/spans"),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Ignoring invalid integer %s=%q", key, v)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Ignoring invalid number %s=%q", key, v)
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Ignoring invalid boolean %s=%q", key, v)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Ignoring invalid duration %s=%q", key, v)
		return fallback
	}
	return d
}

// getList splits a comma separated variable, dropping empty items.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) GetServerAddr() string          { return c.ServerAddr }
func (c *Config) GetWSPath() string              { return c.WSPath }
func (c *Config) GetAllowedOrigins() []string    { return c.AllowedOrigins }
func (c *Config) GetInboundRate() float64        { return c.InboundRate }
func (c *Config) GetInboundBurst() int           { return c.InboundBurst }
func (c *Config) GetClientWSURL() string         { return c.ClientWSURL }
func (c *Config) GetHistoryCapacity() int        { return c.HistoryCapacity }
func (c *Config) GetHistoryPageSize() int        { return c.HistoryPageSize }
func (c *Config) GetHistorySnapshotPath() string { return c.HistorySnapshotPath }
func (c *Config) GetDirectoryBackend() string    { return c.DirectoryBackend }
func (c *Config) GetSeedUsers() []string         { return c.SeedUsers }
func (c *Config) GetDBURL() string               { return c.DBUrl }
func (c *Config) GetDBNs() string                { return c.DBNs }
func (c *Config) GetDBDb() string                { return c.DBDb }
func (c *Config) GetDBUser() string              { return c.DBUser }
func (c *Config) GetDBPass() string              { return c.DBPass }
func (c *Config) GetLogFormat() string           { return c.LogFormat }
func (c *Config) GetLogLevel() string            { return c.LogLevel }
func (c *Config) GetTracingEnabled() bool        { return c.TracingEnabled }
func (c *Config) GetTracingServiceName() string  { return c.TracingServiceName }
func (c *Config) GetTracingZipkinURL() string    { return c.TracingZipkinURL }

func (c *Config) GetClientRetryBackoff() time.Duration  { return c.ClientRetryBackoff }
func (c *Config) GetClientShutdownGrace() time.Duration { return c.ClientShutdownGrace }
func (c *Config) GetClientLockTimeout() time.Duration   { return c.ClientLockTimeout }
func (c *Config) GetDBQueryTimeout() time.Duration      { return c.DBQueryTimeout }
