// Package config loads the service configuration from YAML with environment
// overrides. Env always wins over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
		ShutdownTimeout    string   `yaml:"shutdown_timeout"`
		ExposeMetrics      bool     `yaml:"expose_metrics"`
	} `yaml:"server"`

	Store struct {
		// postgres | memory
		Driver          string `yaml:"driver"`
		DSN             string `yaml:"dsn"`
		MaxConns        int    `yaml:"max_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"store"`

	Cache struct {
		// redis | memory
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Auth struct {
		Issuer string `yaml:"issuer"`
		// PublicKey is the base64 raw Ed25519 verification key.
		PublicKey string `yaml:"public_key"`
		// PrivateKey signs dev tokens only. Never set in prod.
		PrivateKey string `yaml:"private_key"`
	} `yaml:"auth"`

	Consent struct {
		// ChallengeTTL bounds a pending consent challenge.
		ChallengeTTL string `yaml:"challenge_ttl"`
		ConsentUIURL string `yaml:"consent_ui_url"`
		CallbackURL  string `yaml:"callback_url"`
		// RetryEnabled controls the post-consent re-dispatch of the
		// blocked action.
		RetryEnabled bool `yaml:"retry_enabled"`
		// RequireCallbackAuth rejects unauthenticated callbacks. Off in dev,
		// where the browser flow completes the callback without a token.
		RequireCallbackAuth bool `yaml:"require_callback_auth"`
	} `yaml:"consent"`
}

// Load reads path (optional, "" skips the file), applies defaults and env
// overrides, and validates.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8086"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.MaxConns == 0 {
		c.Store.MaxConns = 10
	}
	if c.Store.ConnMaxLifetime == "" {
		c.Store.ConnMaxLifetime = "30m"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Consent.ChallengeTTL == "" {
		c.Consent.ChallengeTTL = "5m"
	}
	if c.Consent.ConsentUIURL == "" {
		c.Consent.ConsentUIURL = "http://localhost:3000/consent"
	}
	if c.Consent.CallbackURL == "" {
		c.Consent.CallbackURL = "http://localhost:8086/api/v1/consent/callback"
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvBool("SERVER_EXPOSE_METRICS"); ok {
		c.Server.ExposeMetrics = v
	}

	if v, ok := getEnvStr("STORE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := getEnvStr("STORE_DSN"); ok {
		c.Store.DSN = v
	}
	if v, ok := getEnvInt("STORE_MAX_CONNS"); ok {
		c.Store.MaxConns = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("CACHE_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvStr("AUTH_ISSUER"); ok {
		c.Auth.Issuer = v
	}
	if v, ok := getEnvStr("AUTH_PUBLIC_KEY"); ok {
		c.Auth.PublicKey = v
	}
	if v, ok := getEnvStr("AUTH_PRIVATE_KEY"); ok {
		c.Auth.PrivateKey = v
	}

	if v, ok := getEnvStr("CONSENT_CHALLENGE_TTL"); ok {
		c.Consent.ChallengeTTL = v
	}
	if v, ok := getEnvStr("CONSENT_UI_URL"); ok {
		c.Consent.ConsentUIURL = v
	}
	if v, ok := getEnvStr("CONSENT_CALLBACK_URL"); ok {
		c.Consent.CallbackURL = v
	}
	if v, ok := getEnvBool("CONSENT_RETRY_ENABLED"); ok {
		c.Consent.RetryEnabled = v
	}
	if v, ok := getEnvBool("CONSENT_REQUIRE_CALLBACK_AUTH"); ok {
		c.Consent.RequireCallbackAuth = v
	}
}

// Validate rejects configurations that cannot serve.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Cache.Kind {
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis cache")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown cache.kind %q", c.Cache.Kind)
	}

	if c.App.Env == "prod" && c.Auth.PublicKey == "" {
		return fmt.Errorf("auth.public_key is required in prod")
	}

	if _, err := time.ParseDuration(c.Consent.ChallengeTTL); err != nil {
		return fmt.Errorf("invalid consent.challenge_ttl: %w", err)
	}
	return nil
}

// ChallengeTTL returns the parsed challenge lifetime.
func (c *Config) ChallengeTTL() time.Duration {
	d, err := time.ParseDuration(c.Consent.ChallengeTTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// Duration parses s falling back to def.
func Duration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}
