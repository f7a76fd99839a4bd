package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port               int    `env:"PORT" envDefault:"8080"`
	DatabaseURL        string `env:"DATABASE_URL,required"`
	RedisURL           string `env:"REDIS_URL,required"`
	SiteName           string `env:"SITE_NAME" envDefault:"OpenClaw"`
	SiteURL            string `env:"SITE_URL" envDefault:"http://localhost:8080"`
	APIBaseURL         string `env:"API_BASE_URL" envDefault:""`
	ManifestURL        string `env:"MANIFEST_URL" envDefault:""`
	PairingTTLSeconds  int    `env:"PAIRING_TTL_SECONDS" envDefault:"300"`
	ClaimRetainSeconds int    `env:"CLAIM_RETAIN_SECONDS" envDefault:"30"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairingTTL() time.Duration {
	return time.Duration(c.PairingTTLSeconds) * time.Second
}

// ClaimRetain is how long a claimed record stays visible for audit before
// the store's expiry removes it.
func (c *Config) ClaimRetain() time.Duration {
	return time.Duration(c.ClaimRetainSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RestURL is the API base location handed to agents after a successful
// claim. Defaults to <SITE_URL>/v1 when API_BASE_URL is unset.
func (c *Config) RestURL() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	return strings.TrimRight(c.SiteURL, "/") + "/v1"
}

// Manifest is the discovery document location included in claim responses.
func (c *Config) Manifest() string {
	if c.ManifestURL != "" {
		return c.ManifestURL
	}
	return strings.TrimRight(c.SiteURL, "/") + "/.well-known/openclaw.json"
}

func (c *Config) Validate(isProduction bool) error {
	if c.PairingTTLSeconds <= 0 {
		return fmt.Errorf("PAIRING_TTL_SECONDS must be positive")
	}
	if c.ClaimRetainSeconds <= 0 {
		return fmt.Errorf("CLAIM_RETAIN_SECONDS must be positive")
	}

	if isProduction {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if !strings.HasPrefix(c.SiteURL, "https://") {
			log.Warn().Msg("SITE_URL is not https in production: agents will receive a plaintext base URL")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
