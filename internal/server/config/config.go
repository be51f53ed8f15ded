// Package config handles configuration for the gateway server,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/authgate/internal/dbx"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config holds runtime settings for the gateway server.
//
// Fields:
//   - ListenAddr: bind address of the gateway.
//   - DatabaseDriver / DatabaseDSN: "sqlite" or "pgx" and its DSN.
//   - SessionTTL: lifetime of a session created by login.
//   - StoreTimeout: upper bound on a single credential store call.
//   - SweepInterval: period of the expired-session sweeper.
//   - UpstreamURL: the wrapped application every gated request is proxied to.
//   - CacheBackend / CacheMaxAge / RedisAddr / RedisPrefix: session view cache.
//   - AcceptLegacyHashes: verify (and upgrade) unsalted SHA-256 password digests.
//   - Admin*: optional administrator created at startup when missing.
type Config struct {
	ListenAddr         string
	DatabaseDriver     string
	DatabaseDSN        string
	SessionTTL         time.Duration
	StoreTimeout       time.Duration
	SweepInterval      time.Duration
	UpstreamURL        string
	CacheBackend       string
	CacheMaxAge        time.Duration
	RedisAddr          string
	RedisPrefix        string
	LogLevel           string
	AcceptLegacyHashes bool
	AdminAccount       string
	AdminPassword      string
	AdminUserName      string
	AdminEmail         string
	AdminPoints        int64
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":7861"
	c.DatabaseDriver = string(dbx.SQLite)
	c.DatabaseDSN = "file:database/users.db?_pragma=busy_timeout(5000)"
	c.SessionTTL = 24 * time.Hour
	c.StoreTimeout = 2 * time.Second
	c.SweepInterval = 10 * time.Minute
	c.UpstreamURL = "http://127.0.0.1:7860"
	c.CacheBackend = CacheMemory
	c.CacheMaxAge = 30 * time.Second
	c.RedisAddr = "127.0.0.1:6379"
	c.RedisPrefix = "authgate:"
	c.LogLevel = "info"
	c.AcceptLegacyHashes = true
	c.AdminAccount = "admin"
	c.AdminUserName = "administrator"
	c.AdminEmail = "admin@example.com"
	c.AdminPoints = 1000
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if _, err := dbx.ParseDialect(c.DatabaseDriver); err != nil {
		return err
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database dsn is empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	switch c.CacheBackend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
	if c.AdminPoints < 0 {
		return fmt.Errorf("admin points must not be negative")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
