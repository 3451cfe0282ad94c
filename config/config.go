// Package config loads the probe's settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/removalcache/provider"
	redisprov "github.com/unkn0wn-root/removalcache/provider/redis"
)

// Config defines every environment variable plus the fields derived from them.
type Config struct {
	// Derived (not loaded from env directly)
	ReadPreference pr.ReadPreference `env:"-"`

	// More than one address selects cluster mode.
	RedisAddrs         []string      `env:"REDIS_ADDRS,required" envSeparator:"," validate:"min=1,dive,hostname_port"`
	// At most one standalone replica; cluster mode routes to replicas itself.
	RedisReplicaAddrs  []string      `env:"REDIS_REPLICA_ADDRS" envSeparator:"," validate:"max=1,dive,hostname_port"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0" validate:"gte=0,lte=15"`
	RedisUsername      string        `env:"REDIS_USERNAME"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisPreferReplica bool          `env:"REDIS_PREFER_REPLICA" envDefault:"false"`
	RedisDialTimeout   time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	RedisReadTimeout   time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s" validate:"gt=0"`
	RedisWriteTimeout  time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s" validate:"gt=0"`

	CacheTTL time.Duration `env:"REMOVAL_CACHE_TTL" envDefault:"10m" validate:"gte=0"`

	AsyncWorkers int `env:"ASYNC_WORKERS" envDefault:"4" validate:"gte=1,lte=64"`
	AsyncQueue   int `env:"ASYNC_QUEUE" envDefault:"1024" validate:"gte=1"`

	DocumentMaxDecodeBytes int `env:"DOCUMENT_MAX_DECODE_BYTES" envDefault:"1048576" validate:"gte=0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse loads configuration from the process environment, validates and
// normalizes it.
func Parse() (*Config, error) {
	return parse(env.Options{})
}

// ParseFrom is Parse over an explicit environment instead of os.Environ.
func ParseFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	cfg.clean()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// clean trims list entries and lowercases enums before validation.
func (c *Config) clean() {
	c.RedisAddrs = compact(c.RedisAddrs)
	c.RedisReplicaAddrs = compact(c.RedisReplicaAddrs)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// check covers rules that span fields.
func (c *Config) check() error {
	if c.Cluster() && c.RedisDB != 0 {
		return fmt.Errorf("REDIS_DB must be 0 when REDIS_ADDRS selects cluster mode, got %d", c.RedisDB)
	}
	return nil
}

// Cluster reports whether REDIS_ADDRS names more than one node.
func (c *Config) Cluster() bool { return len(c.RedisAddrs) > 1 }

// normalize sets derived fields.
func (c *Config) normalize() {
	c.ReadPreference = pr.PreferPrimary
	if c.RedisPreferReplica {
		c.ReadPreference = pr.PreferReplica
	}
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// UniversalOptions returns the client options for the primary.
// More than one address yields a cluster client.
func (c *Config) UniversalOptions() *goredis.UniversalOptions {
	return c.options(c.RedisAddrs)
}

// ReplicaOptions returns the client options for the replica, or false when
// REDIS_REPLICA_ADDRS is empty. The single address always yields a plain
// client. A replica refuses writes on its own so no ReadOnly flag is set.
func (c *Config) ReplicaOptions() (*goredis.UniversalOptions, bool) {
	if len(c.RedisReplicaAddrs) == 0 {
		return nil, false
	}
	return c.options(c.RedisReplicaAddrs), true
}

func (c *Config) options(addrs []string) *goredis.UniversalOptions {
	return &goredis.UniversalOptions{
		Addrs:        addrs,
		DB:           c.RedisDB,
		Username:     c.RedisUsername,
		Password:     c.RedisPassword,
		DialTimeout:  c.RedisDialTimeout,
		ReadTimeout:  c.RedisReadTimeout,
		WriteTimeout: c.RedisWriteTimeout,
	}
}

// RedisProvider dials nothing: go-redis connects lazily on the first command.
// The returned provider owns its clients and closes them on Close.
func (c *Config) RedisProvider() (*redisprov.Redis, error) {
	cfg := redisprov.Config{
		Client:      goredis.NewUniversalClient(c.UniversalOptions()),
		CloseClient: true,
	}
	if o, ok := c.ReplicaOptions(); ok {
		cfg.Replica = goredis.NewUniversalClient(o)
	}
	return redisprov.New(cfg)
}
