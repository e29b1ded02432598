package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	paymentsdomain "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/domain"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port        string
	PostgresDSN string
	RedisAddr   string
	AMQPURL     string
	Exchange    string

	JWTSecret string
	JWTExpiry time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	OtpTTL         time.Duration
	ResendCooldown time.Duration
	OtpMaxAttempts int

	Bank paymentsdomain.BankAccount

	ProductCacheTTL time.Duration
}

// LoadConfig reads environment variables, applies defaults, and validates
// basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:        envDefault("PORT", "8080"),
		PostgresDSN: strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:   strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		AMQPURL:     strings.TrimSpace(os.Getenv("AMQP_URL")),
		Exchange:    envDefault("AMQP_EXCHANGE", "shop.events"),

		JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTExpiry: 24 * time.Hour,

		SMTPHost:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     envDefault("SMTP_FROM", "no-reply@thietbi-dientu.vn"),

		OtpTTL:         10 * time.Minute,
		ResendCooldown: time.Minute,
		OtpMaxAttempts: 5,

		Bank: paymentsdomain.BankAccount{
			Bank:          envDefault("BANK_NAME", "Vietcombank"),
			AccountNumber: envDefault("BANK_ACCOUNT_NUMBER", "0011004334999"),
			AccountName:   envDefault("BANK_ACCOUNT_HOLDER", "CONG TY TNHH THIET BI DIEN TU"),
		},

		ProductCacheTTL: time.Minute,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if raw := strings.TrimSpace(os.Getenv("JWT_EXPIRY_HOURS")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("JWT_EXPIRY_HOURS must be a positive integer")
		}
		cfg.JWTExpiry = time.Duration(hours) * time.Hour
	}

	cfg.SMTPPort = 587
	if raw := strings.TrimSpace(os.Getenv("SMTP_PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 {
			return Config{}, fmt.Errorf("SMTP_PORT must be a positive integer")
		}
		cfg.SMTPPort = port
	}

	if raw := strings.TrimSpace(os.Getenv("OTP_TTL_MINUTES")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return Config{}, fmt.Errorf("OTP_TTL_MINUTES must be a positive integer")
		}
		cfg.OtpTTL = time.Duration(minutes) * time.Minute
	}
	if raw := strings.TrimSpace(os.Getenv("OTP_RESEND_COOLDOWN_SEC")); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("OTP_RESEND_COOLDOWN_SEC must be a positive integer")
		}
		cfg.ResendCooldown = time.Duration(seconds) * time.Second
	}
	if raw := strings.TrimSpace(os.Getenv("OTP_MAX_ATTEMPTS")); raw != "" {
		attempts, err := strconv.Atoi(raw)
		if err != nil || attempts <= 0 {
			return Config{}, fmt.Errorf("OTP_MAX_ATTEMPTS must be a positive integer")
		}
		cfg.OtpMaxAttempts = attempts
	}
	if raw := strings.TrimSpace(os.Getenv("PRODUCT_CACHE_TTL_SEC")); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("PRODUCT_CACHE_TTL_SEC must be a positive integer")
		}
		cfg.ProductCacheTTL = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
