// Package config loads the service configuration from PORTAL_-prefixed
// environment variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Auth configures the token service and the credential hashing.
type Auth struct {
	Issuer         string
	ActivationSalt string
	StretchCost    int
	PrivateKeyPath string
	PublicKeyPath  string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	SessionTTL     time.Duration
}

// OIDC identifies the upstream admin identity provider.
type OIDC struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Config is the full service configuration.
type Config struct {
	Addr          string
	DSN           string
	MigrationsDir string
	RateBurst     int
	RatePerSec    int
	Auth          Auth
	OIDC          OIDC
}

// Load reads the environment (after merging an optional .env file) and
// validates required settings.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Addr:          getenv("PORTAL_ADDR", ":8080"),
		DSN:           os.Getenv("PORTAL_PG_DSN"),
		MigrationsDir: getenv("PORTAL_MIGRATIONS_DIR", "migrations"),
		Auth: Auth{
			Issuer:         getenv("PORTAL_TOKEN_ISSUER", "https://portal.koudaisai.jp"),
			ActivationSalt: os.Getenv("PORTAL_ACTIVATION_SALT"),
			PrivateKeyPath: os.Getenv("PORTAL_RSA_PRIVATE_KEY"),
			PublicKeyPath:  os.Getenv("PORTAL_RSA_PUBLIC_KEY"),
		},
		OIDC: OIDC{
			IssuerURL:    os.Getenv("PORTAL_OIDC_ISSUER"),
			ClientID:     os.Getenv("PORTAL_OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("PORTAL_OIDC_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("PORTAL_OIDC_REDIRECT_URL"),
		},
	}

	var err error
	if cfg.Auth.StretchCost, err = getint("PORTAL_STRETCH_COST", 13); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = getint("PORTAL_AUTH_RATE_BURST", 20); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = getint("PORTAL_AUTH_RATE_PER_SEC", 5); err != nil {
		return Config{}, err
	}
	if cfg.Auth.AccessTTL, err = getduration("PORTAL_ACCESS_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Auth.RefreshTTL, err = getduration("PORTAL_REFRESH_TTL", 6*30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Auth.SessionTTL, err = getduration("PORTAL_SESSION_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}

	if cfg.DSN == "" {
		return Config{}, fmt.Errorf("config: PORTAL_PG_DSN is required")
	}
	if cfg.Auth.ActivationSalt == "" {
		return Config{}, fmt.Errorf("config: PORTAL_ACTIVATION_SALT is required")
	}
	if cfg.Auth.PrivateKeyPath == "" || cfg.Auth.PublicKeyPath == "" {
		return Config{}, fmt.Errorf("config: PORTAL_RSA_PRIVATE_KEY and PORTAL_RSA_PUBLIC_KEY are required")
	}
	if cfg.OIDC.IssuerURL == "" || cfg.OIDC.ClientID == "" || cfg.OIDC.ClientSecret == "" || cfg.OIDC.RedirectURL == "" {
		return Config{}, fmt.Errorf("config: PORTAL_OIDC_ISSUER, PORTAL_OIDC_CLIENT_ID, PORTAL_OIDC_CLIENT_SECRET and PORTAL_OIDC_REDIRECT_URL are required")
	}
	if cfg.Auth.StretchCost < 0 || cfg.Auth.StretchCost > 31 {
		return Config{}, fmt.Errorf("config: PORTAL_STRETCH_COST out of range")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
