package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/passport/internal/passport/service"
	"github.com/aussiebroadwan/passport/pkg/totpx"
)

type Config struct {
	SecretKeyPath string // Optional: path to base64 secret key file (default: PASSPORT_SECRET_KEY env)
	InternalKey   string // Optional: key required on the internal endpoints; unset disables them

	CookieName           string        // Optional: session cookie name (default: __Host-passport)
	SessionLifetimeDays  int           // Optional: absolute session lifetime (default: 365)
	SessionMaxIdleDays   int           // Optional: max days without activity (default: 7)
	TokenTrustWindow     time.Duration // Optional: how long a verified token skips the store (default: 5s)
	SessionUpdateAfter   time.Duration // Optional: min gap between last-seen writes (default: 30s)
	MaxActiveSessions    int           // Optional: concurrent sessions per account (default: 30)
	TOTPIssuer           string        // Optional: issuer for provisioning URIs (default: passport)
	TOTPAlgorithm        string        // Optional: TOTP HMAC hash, SHA1 or SHA256 (default: SHA1)
	DatabaseFile         string        // Optional: path to SQLite database file (default: ./passport.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		SecretKeyPath: os.Getenv("PASSPORT_SECRET_KEY_FILE"),
		InternalKey:   os.Getenv("PASSPORT_INTERNAL_KEY"),

		CookieName:           getEnvOrDefault("PASSPORT_COOKIE_NAME", ""),
		SessionLifetimeDays:  getEnvIntOrDefault("PASSPORT_SESSION_LIFETIME_DAYS", 365),
		SessionMaxIdleDays:   getEnvIntOrDefault("PASSPORT_SESSION_MAX_IDLE_DAYS", 7),
		TokenTrustWindow:     getEnvDurationOrDefault("PASSPORT_TOKEN_TRUST_WINDOW", 5*time.Second),
		SessionUpdateAfter:   getEnvDurationOrDefault("PASSPORT_SESSION_UPDATE_AFTER", 30*time.Second),
		MaxActiveSessions:    getEnvIntOrDefault("PASSPORT_MAX_ACTIVE_SESSIONS", 30),
		TOTPIssuer:           getEnvOrDefault("PASSPORT_TOTP_ISSUER", "passport"),
		TOTPAlgorithm:        getEnvOrDefault("PASSPORT_TOTP_ALGORITHM", "SHA1"),
		DatabaseFile:         getEnvOrDefault("PASSPORT_DATABASE_FILE", "passport.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Policy maps the configured windows onto the session policy.
func (c Config) Policy() service.Policy {
	p := service.DefaultPolicy()
	if c.SessionLifetimeDays > 0 {
		p.LifetimeDays = c.SessionLifetimeDays
	}
	if c.SessionMaxIdleDays > 0 {
		p.MaxOfflineDays = c.SessionMaxIdleDays
	}
	if c.TokenTrustWindow > 0 {
		p.TrustWindow = c.TokenTrustWindow
	}
	if c.SessionUpdateAfter > 0 {
		p.UpdateAfter = c.SessionUpdateAfter
	}
	if c.MaxActiveSessions > 0 {
		p.MaxActiveSessions = int64(c.MaxActiveSessions)
	}
	return p
}

// TOTPHash parses the configured algorithm, defaulting to SHA-1 for
// compatibility with standard authenticator apps.
func (c Config) TOTPHash() totpx.Algorithm {
	return totpx.ParseAlgorithm(c.TOTPAlgorithm)
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

	// Accept duration strings ("1h", "30m", "90s") or integer seconds.
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
