// Package config loads the process configuration from the environment,
// the way every other entrypoint in this codebase does it.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// Config is the full set of environment knobs for the addon, its search
// pipeline, its worker pools, and the Redis-backed store/bus.
type Config struct {
	Addr string `env:"ADDR" envDefault:":7000"`

	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	JackettURL          string        `env:"JACKETT_URL"`
	JackettAPIKey       string        `env:"JACKETT_API_KEY"`
	JackettIndexers     []string      `env:"JACKETT_INDEXERS" envSeparator:","`
	JackettMaxResults   int           `env:"JACKETT_MAX_RESULTS" envDefault:"50"`
	JackettTimeout      time.Duration `env:"JACKETT_TIMEOUT" envDefault:"30s"`
	JackettCacheMinutes int           `env:"JACKETT_CACHE_MINUTES" envDefault:"15"`

	CinemetaCacheMinutes int `env:"CINEMETA_CACHE_MINUTES" envDefault:"60"`

	SearchTimeout time.Duration `env:"SEARCH_TIMEOUT" envDefault:"10s"`

	TorrentProcessorMaxQueueDepth int           `env:"TORRENT_PROCESSOR_MAX_QUEUE_DEPTH" envDefault:"10000"`
	MagnetResolveTimeout          time.Duration `env:"MAGNET_RESOLVE_TIMEOUT" envDefault:"15s"`

	Workers int `env:"WORKERS" envDefault:"5"`

	ForwardOriginIP bool   `env:"FORWARD_ORIGIN_IP" envDefault:"false"`
	OriginIPHeader  string `env:"ORIGIN_IP_HEADER" envDefault:"X-Forwarded-For"`
}

// Load parses the environment into a Config, applying the envDefault tags
// for anything not set.
func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
