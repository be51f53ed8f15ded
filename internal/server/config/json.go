package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authgate/internal/flagx"
)

// JsonConfig is the on-disk shape of the configuration. Pointer fields tell
// "absent" apart from zero values, so a file only overrides what it names.
type JsonConfig struct {
	ListenAddr         *string   `json:"listen_addr"`
	DatabaseDriver     *string   `json:"database_driver"`
	DatabaseDSN        *string   `json:"database_dsn"`
	SessionTTL         *Duration `json:"session_ttl"`
	StoreTimeout       *Duration `json:"store_timeout"`
	SweepInterval      *Duration `json:"sweep_interval"`
	UpstreamURL        *string   `json:"upstream_url"`
	CacheBackend       *string   `json:"cache_backend"`
	CacheMaxAge        *Duration `json:"cache_max_age"`
	RedisAddr          *string   `json:"redis_addr"`
	RedisPrefix        *string   `json:"redis_prefix"`
	LogLevel           *string   `json:"log_level"`
	AcceptLegacyHashes *bool     `json:"accept_legacy_hashes"`
	AdminAccount       *string   `json:"admin_account"`
	AdminPassword      *string   `json:"admin_password"`
	AdminUserName      *string   `json:"admin_username"`
	AdminEmail         *string   `json:"admin_email"`
	AdminPoints        *int64    `json:"admin_points"`
}

// parseJson overlays the file named by -c/-config (or $AUTHGATE_CONFIG)
// onto config. Without a path it does nothing.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.UpstreamURL, c.UpstreamURL)
	setString(&config.CacheBackend, c.CacheBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPrefix, c.RedisPrefix)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AdminAccount, c.AdminAccount)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.AdminUserName, c.AdminUserName)
	setString(&config.AdminEmail, c.AdminEmail)

	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.StoreTimeout != nil {
		config.StoreTimeout = c.StoreTimeout.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.CacheMaxAge != nil {
		config.CacheMaxAge = c.CacheMaxAge.Duration
	}
	if c.AcceptLegacyHashes != nil {
		config.AcceptLegacyHashes = *c.AcceptLegacyHashes
	}
	if c.AdminPoints != nil {
		config.AdminPoints = *c.AdminPoints
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
