package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env                   string
	Port                  string
	AllowedOrigin         string
	LogLevel              string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	AuthSecret            string
	AccessTokenTTLMinutes int
	TaxRate               decimal.Decimal
	DefaultDiscount       decimal.Decimal
	AllowOversell         bool
	LoyaltyAccrualEnabled bool
	LoyaltyPointsPerUnit  int
	KafkaBrokers          []string
	KafkaTransactionTopic string
	SeedFile              string
	// Malformed lists money settings that were set but did not parse; their
	// defaults were used instead.
	Malformed             []string
}

// Load reads configuration from the environment. Outside production, values
// from .env.local and .env fill in anything not already set.
func Load() Config {
	env := getEnv("APP_ENV", "local")
	if env != "production" {
		_ = godotenv.Load(".env.local", ".env")
	}

	var malformed []string
	cfg := Config{
		Env:                   getEnv("APP_ENV", env),
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0, 0),
		ReportCacheTTLSeconds: getInt("REPORT_CACHE_TTL_SECONDS", 30, 1),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		TaxRate:               getDecimal("TAX_RATE", "0.08", &malformed),
		DefaultDiscount:       getDecimal("DEFAULT_DISCOUNT", "0", &malformed),
		AllowOversell:         getBool("ALLOW_OVERSELL", true),
		LoyaltyAccrualEnabled: getBool("LOYALTY_ACCRUAL_ENABLED", false),
		LoyaltyPointsPerUnit:  getInt("LOYALTY_POINTS_PER_UNIT", 1, 0),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTransactionTopic: getEnv("KAFKA_TRANSACTION_TOPIC", "pos.transaction.completed"),
		SeedFile:              os.Getenv("SEED_FILE"),
	}
	cfg.Malformed = malformed

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsLocal() bool {
	return c.Env == "local"
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return val
}

func getDecimal(key string, fallback string, malformed *[]string) decimal.Decimal {
	raw := getEnv(key, fallback)
	val, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		*malformed = append(*malformed, fmt.Sprintf("%s=%q", key, raw))
		return decimal.RequireFromString(fallback)
	}
	return val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
