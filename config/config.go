// Package config loads settings from defaults, an optional config file, .env
// files and LOANRISK_ environment variables, in increasing order of precedence.
// Command line flags bound to the same viper keys override all of them.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "LOANRISK"

type Config struct {
	Simulation SimulationConfig
	Portfolio  PortfolioConfig
	HTTP       HTTPConfig
	RateLimit  RateLimitConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	AI         AIConfig
	Log        LogConfig
}

type SimulationConfig struct {
	Count   int
	Seed    *uint64
	Workers int
}

type PortfolioConfig struct {
	File string
}

// HTTPConfig: with no TrustedProxies, X-Forwarded-For is ignored and clients
// are identified by their socket address.
type HTTPConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type RateLimitConfig struct {
	Capacity int
	Refill   time.Duration
}

// RedisConfig: an empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

// DatabaseConfig: an empty DSN keeps the newest MemoryRuns runs in memory,
// of which only the newest MemorySamples keep their loss sample.
type DatabaseConfig struct {
	DSN           string
	MemoryRuns    int
	MemorySamples int
}

// KafkaConfig: no brokers disables event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AIConfig struct {
	APIKey string
	Model  string
}

type LogConfig struct {
	Level  string
	Format string
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("simulation.count", 1000)
	v.SetDefault("simulation.workers", 1)
	v.SetDefault("portfolio.file", "loans_data.xlsx")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.trusted_proxies", []string{})
	v.SetDefault("ratelimit.capacity", 5)
	v.SetDefault("ratelimit.refill", time.Minute)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.memory_runs", 500)
	v.SetDefault("database.memory_samples", 20)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "loan-risk.runs")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadDotEnv loads the given .env files, or ./.env when none is given. Missing
// files are skipped and variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// Load reads the configuration into a Config. file may be empty.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", file)
		}
	}

	cfg := Config{
		Simulation: SimulationConfig{
			Count:   v.GetInt("simulation.count"),
			Workers: v.GetInt("simulation.workers"),
		},
		Portfolio: PortfolioConfig{
			File: v.GetString("portfolio.file"),
		},
		HTTP: HTTPConfig{
			Addr:           v.GetString("http.addr"),
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			TrustedProxies: splitList(v.GetStringSlice("http.trusted_proxies")),
		},
		RateLimit: RateLimitConfig{
			Capacity: v.GetInt("ratelimit.capacity"),
			Refill:   v.GetDuration("ratelimit.refill"),
		},
		Redis: RedisConfig{
			Addr: v.GetString("redis.addr"),
			TTL:  v.GetDuration("redis.ttl"),
		},
		Database: DatabaseConfig{
			DSN:           v.GetString("database.dsn"),
			MemoryRuns:    v.GetInt("database.memory_runs"),
			MemorySamples: v.GetInt("database.memory_samples"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		AI: AIConfig{
			APIKey: v.GetString("ai.api_key"),
			Model:  v.GetString("ai.model"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if raw := strings.TrimSpace(v.GetString("simulation.seed")); v.IsSet("simulation.seed") && raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Config{}, errors.Errorf("simulation.seed %q is not an unsigned integer", raw)
		}
		cfg.Simulation.Seed = &seed
	}

	return cfg, cfg.Validate()
}

// splitList accepts both a list and a single comma separated value, the form
// an environment variable takes.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	if c.Simulation.Count <= 0 {
		return errors.Errorf("simulation.count must be positive, got %d", c.Simulation.Count)
	}
	if c.Simulation.Workers < 1 {
		return errors.Errorf("simulation.workers must be at least 1, got %d", c.Simulation.Workers)
	}
	if c.Database.MemoryRuns < 1 {
		return errors.Errorf("database.memory_runs must be at least 1, got %d", c.Database.MemoryRuns)
	}
	if c.Database.MemorySamples < 0 {
		return errors.Errorf("database.memory_samples must not be negative, got %d", c.Database.MemorySamples)
	}
	if c.RateLimit.Capacity < 0 {
		return errors.Errorf("ratelimit.capacity must not be negative, got %d", c.RateLimit.Capacity)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
