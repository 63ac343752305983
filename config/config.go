package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates runtime settings. Everything comes from the
// environment; main loads .env first via godotenv.
type Config struct {
	Addr    string
	MongoDB string

	MongoURI  string
	RedisAddr string
	RedisDB   int

	JWTSecret  []byte
	CronSecret string

	ConektaKey string
	ConektaURL string

	SMTPHost string
	SMTPPort string
	SMTPFrom string
	SMTPPass string

	// Reservation windows.
	CartExpiry    time.Duration
	OfflineExpiry time.Duration

	// Flat shipping fees in minor units, keyed by delivery zone.
	CityShippingFee     int64
	NationalShippingFee int64
}

// Load reads and validates the configuration, falling back to
// development defaults where a value is optional.
func Load() (Config, error) {
	cfg := Config{
		Addr:                getEnv("PORT", ":8080"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:             getEnv("MONGO_DB", "tienda"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:           []byte(os.Getenv("JWT_SECRET")),
		CronSecret:          getEnv("CRON_SECRET", "dev-cron-secret"),
		ConektaKey:          os.Getenv("CONEKTA_KEY"),
		ConektaURL:          getEnv("CONEKTA_URL", "https://api.conekta.io"),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            getEnv("SMTP_PORT", "587"),
		SMTPFrom:            os.Getenv("SMTP_FROM"),
		SMTPPass:            os.Getenv("SMTP_PASS"),
		CartExpiry:          7 * 24 * time.Hour,
		OfflineExpiry:       3 * 24 * time.Hour,
		CityShippingFee:     3500,
		NationalShippingFee: 11900,
	}

	if cfg.Addr[0] != ':' {
		cfg.Addr = ":" + cfg.Addr
	}
	if len(cfg.JWTSecret) == 0 {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	if fee, err := getEnvInt("CITY_SHIPPING_FEE", int(cfg.CityShippingFee)); err != nil {
		return Config{}, fmt.Errorf("invalid CITY_SHIPPING_FEE: %w", err)
	} else {
		cfg.CityShippingFee = int64(fee)
	}
	if fee, err := getEnvInt("NATIONAL_SHIPPING_FEE", int(cfg.NationalShippingFee)); err != nil {
		return Config{}, fmt.Errorf("invalid NATIONAL_SHIPPING_FEE: %w", err)
	} else {
		cfg.NationalShippingFee = int64(fee)
	}

	return cfg, nil
}

// MailEnabled reports whether SMTP settings are complete enough to
// actually send mail; otherwise the mailer logs instead.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
