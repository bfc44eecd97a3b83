package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Env            string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	AllowedOrigins []string

	OperationTimeout time.Duration
	TxMaxRetries     int

	Kafka  Kafka
	Redis  Redis
	OpenAI OpenAI
}

type Kafka struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether events go to Kafka rather than the log.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type Redis struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

func (r Redis) Enabled() bool { return r.Addr != "" }

type OpenAI struct {
	APIKey string
	Model  string
}

func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads the process environment. DATABASE_URL is required; malformed numbers and
// durations fall back to their defaults with a warning.
func Load(log *zap.Logger) *Config {
	return &Config{
		Env:            getEnvDefault("APP_ENV", "development"),
		Port:           getEnvDefault("SERVER_PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", log),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitAndTrim(os.Getenv("ALLOWED_ORIGINS")),

		OperationTimeout: durationDefault("OPERATION_TIMEOUT", 10*time.Second, log),
		TxMaxRetries:     atoiDefault("TX_MAX_RETRIES", 3, log),

		Kafka: Kafka{
			Brokers: splitAndTrim(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvDefault("KAFKA_TOPIC", "warehouse.events"),
		},
		Redis: Redis{
			Addr:           os.Getenv("REDIS_ADDR"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             atoiDefault("REDIS_DB", 0, log),
			IdempotencyTTL: durationDefault("IDEMPOTENCY_TTL", 24*time.Hour, log),
		},
		OpenAI: OpenAI{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		},
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	log.Error("required environment variable is not set", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func atoiDefault(key string, def int, log *zap.Logger) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		log.Warn("invalid integer, using default", zap.String("key", key), zap.String("value", s), zap.Int("default", def))
		return def
	}
	return n
}

func durationDefault(key string, def time.Duration, log *zap.Logger) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Warn("invalid duration, using default", zap.String("key", key), zap.String("value", s), zap.Duration("default", def))
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if pt := strings.TrimSpace(p); pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
