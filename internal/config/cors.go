package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Environment overrides for the CORS section. List values are comma-separated.
const (
	EnvCORSEnabled          = "INGEST_CORS_ENABLED"
	EnvCORSOrigins          = "INGEST_CORS_ORIGINS"
	EnvCORSAllowedMethods   = "INGEST_CORS_ALLOWED_METHODS"
	EnvCORSAllowedHeaders   = "INGEST_CORS_ALLOWED_HEADERS"
	EnvCORSAllowCredentials = "INGEST_CORS_ALLOW_CREDENTIALS"
	EnvCORSMaxAge           = "INGEST_CORS_MAX_AGE"
)

// CORSConfig is the cross-origin policy for browser upload clients. Origins
// are matched exactly, so each must be a bare scheme://host[:port].
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	Origins          []string `toml:"origins"`
	AllowedMethods   []string `toml:"allowed_methods"`
	AllowedHeaders   []string `toml:"allowed_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAge           int      `toml:"max_age"`
}

// Finalize applies defaults, loads environment overrides, and validates the CORS configuration.
func (c *CORSConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration. Booleans always take the
// overlay's value; lists replace the base when set.
func (c *CORSConfig) Merge(overlay *CORSConfig) {
	c.Enabled = overlay.Enabled
	c.AllowCredentials = overlay.AllowCredentials

	if overlay.Origins != nil {
		c.Origins = overlay.Origins
	}
	if overlay.AllowedMethods != nil {
		c.AllowedMethods = overlay.AllowedMethods
	}
	if overlay.AllowedHeaders != nil {
		c.AllowedHeaders = overlay.AllowedHeaders
	}
	if overlay.MaxAge > 0 {
		c.MaxAge = overlay.MaxAge
	}
}

// The upload API only uses these methods and JSON bodies.
func (c *CORSConfig) loadDefaults() {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type"}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3600
	}
}

func (c *CORSConfig) loadEnv() {
	envBool(EnvCORSEnabled, &c.Enabled)
	envBool(EnvCORSAllowCredentials, &c.AllowCredentials)
	envList(EnvCORSOrigins, &c.Origins)
	envList(EnvCORSAllowedMethods, &c.AllowedMethods)
	envList(EnvCORSAllowedHeaders, &c.AllowedHeaders)

	if v := os.Getenv(EnvCORSMaxAge); v != "" {
		if maxAge, err := strconv.Atoi(v); err == nil {
			c.MaxAge = maxAge
		}
	}
}

func (c *CORSConfig) validate() error {
	for _, origin := range c.Origins {
		if origin == "*" {
			return fmt.Errorf("origin %q: wildcard not supported, list origins explicitly", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return fmt.Errorf("origin %q: want scheme://host[:port]", origin)
		}
		if u.Path == "/" {
			return fmt.Errorf("origin %q: remove the trailing slash", origin)
		}
	}
	return nil
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envList(name string, dst *[]string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*dst = out
}
