package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/avstrong/staycal/internal/calendar"
)

type HTTP struct {
	Host              string        `mapstructure:"host"`
	Port              string        `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	LivenessEndpoint  string        `mapstructure:"liveness_endpoint"`
}

type Upstream struct {
	BaseURL       string        `mapstructure:"base_url"`
	Token         string        `mapstructure:"token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	// Offline serves seeded demo data instead of calling the hotel API.
	Offline bool `mapstructure:"offline"`
}

type Calendar struct {
	Timezone                 string `mapstructure:"timezone"`
	PickerPastBoundary       string `mapstructure:"picker_past_boundary"`
	AvailabilityPastBoundary string `mapstructure:"availability_past_boundary"`
}

type Cache struct {
	Backend string `mapstructure:"backend"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// Session bounds how long an untouched selection session is kept.
type Session struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type Config struct {
	Env      string   `mapstructure:"env"`
	HTTP     HTTP     `mapstructure:"http"`
	Upstream Upstream `mapstructure:"upstream"`
	Calendar Calendar `mapstructure:"calendar"`
	Cache    Cache    `mapstructure:"cache"`
	Redis    Redis    `mapstructure:"redis"`
	Session  Session  `mapstructure:"session"`
}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("http.host", "localhost")
	v.SetDefault("http.port", "8092")
	v.SetDefault("http.read_header_timeout", 20*time.Second) //nolint:gomnd
	v.SetDefault("http.shutdown_timeout", 4*time.Second)     //nolint:gomnd
	v.SetDefault("http.liveness_endpoint", "/liveness")
	v.SetDefault("upstream.base_url", "http://localhost:8080/api")
	v.SetDefault("upstream.token", "")
	v.SetDefault("upstream.timeout", 10*time.Second) //nolint:gomnd
	v.SetDefault("upstream.rate_per_second", 20)     //nolint:gomnd
	v.SetDefault("upstream.offline", false)
	v.SetDefault("calendar.timezone", "Local")
	v.SetDefault("calendar.picker_past_boundary", "exclusive")
	v.SetDefault("calendar.availability_past_boundary", "inclusive")
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "staycal:price-adjustments")
	v.SetDefault("session.idle_ttl", 30*time.Minute)   //nolint:gomnd
	v.SetDefault("session.sweep_interval", time.Minute) //nolint:gomnd
}

// Load reads config.yaml from the given paths (or . and ./config) and lets STAYCAL_* env vars override it,
// e.g. STAYCAL_UPSTREAM_BASE_URL.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}

	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("staycal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := conf.Verify(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// Verify filters out evident errors.
func (c *Config) Verify() error {
	if _, err := c.Location(); err != nil {
		return err
	}

	if _, err := calendar.ParsePastBoundary(c.Calendar.PickerPastBoundary); err != nil {
		return fmt.Errorf("calendar.picker_past_boundary: %w", err)
	}

	if _, err := calendar.ParsePastBoundary(c.Calendar.AvailabilityPastBoundary); err != nil {
		return fmt.Errorf("calendar.availability_past_boundary: %w", err)
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("cache.backend %q: %w", c.Cache.Backend, ErrUnknownBackend)
	}

	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session.idle_ttl: %w", ErrMissingValue)
	}

	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval: %w", ErrMissingValue)
	}

	if !c.Upstream.Offline && c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url: %w", ErrMissingValue)
	}

	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar.timezone %q: %w", c.Calendar.Timezone, err)
	}

	return loc, nil
}

func (c *Config) PickerBoundary() calendar.PastBoundary {
	b, _ := calendar.ParsePastBoundary(c.Calendar.PickerPastBoundary)

	return b
}

func (c *Config) AvailabilityBoundary() calendar.PastBoundary {
	b, _ := calendar.ParsePastBoundary(c.Calendar.AvailabilityPastBoundary)

	return b
}
