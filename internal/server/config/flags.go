package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/authgate/internal/flagx"
)

var flagNames = []string{
	"-a", "-d", "-driver", "-u", "-t", "-store-timeout", "-sweep",
	"-cache", "-cache-max-age", "-redis", "-redis-prefix", "-l", "-legacy",
	"-admin-account", "-admin-password", "-admin-username", "-admin-email", "-admin-points",
}

// parseFlags overlays command-line flags onto config.
//
// Supported flags:
//
//	-a string               listen address (e.g. ":7861")
//	-d string               database DSN
//	-driver string          database driver, "sqlite" or "pgx"
//	-u string               upstream application URL
//	-t duration             session TTL
//	-store-timeout duration credential store call timeout
//	-sweep duration         expired session sweep interval
//	-cache string           cache backend: memory, redis or none
//	-cache-max-age duration how long a cached session view may be served
//	-redis string           redis address
//	-redis-prefix string    redis key prefix
//	-l string               log level
//	-legacy bool            accept unsalted SHA-256 password digests
//	-admin-* ...            seed administrator
//
// Args are filtered with flagx.FilterArgs first so -c/-config and flags of
// other components do not trip the parser.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, flagNames)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to listen on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver (sqlite|pgx)")
	fs.StringVar(&config.UpstreamURL, "u", config.UpstreamURL, "upstream application URL")
	fs.DurationVar(&config.SessionTTL, "t", config.SessionTTL, "session TTL")
	fs.DurationVar(&config.StoreTimeout, "store-timeout", config.StoreTimeout, "credential store call timeout")
	fs.DurationVar(&config.SweepInterval, "sweep", config.SweepInterval, "expired session sweep interval")
	fs.StringVar(&config.CacheBackend, "cache", config.CacheBackend, "session cache backend (memory|redis|none)")
	fs.DurationVar(&config.CacheMaxAge, "cache-max-age", config.CacheMaxAge, "session cache max age")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPrefix, "redis-prefix", config.RedisPrefix, "redis key prefix")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug|info|warn|error)")
	fs.BoolVar(&config.AcceptLegacyHashes, "legacy", config.AcceptLegacyHashes, "accept legacy password digests")
	fs.StringVar(&config.AdminAccount, "admin-account", config.AdminAccount, "seed admin account")
	fs.StringVar(&config.AdminPassword, "admin-password", config.AdminPassword, "seed admin password")
	fs.StringVar(&config.AdminUserName, "admin-username", config.AdminUserName, "seed admin username")
	fs.StringVar(&config.AdminEmail, "admin-email", config.AdminEmail, "seed admin email")
	fs.Int64Var(&config.AdminPoints, "admin-points", config.AdminPoints, "seed admin points")

	return fs.Parse(args)
}
