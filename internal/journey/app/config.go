package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer     string // Required: issuer claim for every token minted
	ConsentURL string // Required: UI page the authorize endpoint redirects to

	// CallbackURL is the provider-facing redirect URI registered with every
	// downstream provider. Defaults to Issuer + "/api/auth/callback".
	CallbackURL string

	DatabaseFile   string        // Optional: path to SQLite database file (default: ./journeyd.db)
	MasterKeyPath  string        // Optional: path to master encryption key file (else JOURNEYD_MASTER_KEY env)
	RSABits        int           // Optional: RSA key size for new signing keys (default: 2048)
	KeyTTL         time.Duration // Optional: signing key lifetime (default: 24h)
	KeyGracePeriod time.Duration // Optional: retention of expired keys before cleanup (default: 7 days)

	// AdminUsername/AdminPassword seed the first operator account for the
	// registry surface. Ignored when the username is already taken.
	AdminUsername string
	AdminPassword string

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping sweep interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:         os.Getenv("JOURNEYD_ISSUER"),
		ConsentURL:     os.Getenv("JOURNEYD_CONSENT_URL"),
		CallbackURL:    os.Getenv("JOURNEYD_CALLBACK_URL"),
		DatabaseFile:   getEnvOrDefault("JOURNEYD_DATABASE_FILE", "journeyd.db"),
		MasterKeyPath:  os.Getenv("JOURNEYD_MASTER_KEY_PATH"),
		RSABits:        getEnvIntOrDefault("JOURNEYD_RSA_BITS", 0),
		KeyTTL:         getEnvDurationOrDefault("JOURNEYD_KEY_TTL", 24*time.Hour),
		KeyGracePeriod: getEnvDurationOrDefault("JOURNEYD_KEY_GRACE_PERIOD", 7*24*time.Hour),

		AdminUsername: os.Getenv("JOURNEYD_ADMIN_USERNAME"),
		AdminPassword: os.Getenv("JOURNEYD_ADMIN_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "http://localhost:" + strconv.Itoa(cfg.Port)
	}
	if cfg.ConsentURL == "" {
		cfg.ConsentURL = cfg.Issuer + "/consent"
	}
	if cfg.CallbackURL == "" {
		cfg.CallbackURL = cfg.Issuer + "/api/auth/callback"
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accepts Go duration strings ("1h", "30m") or bare integer minutes.
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
