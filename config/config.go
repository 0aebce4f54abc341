// Package config loads the indicator engine configuration from an optional
// YAML file, a .env file and INDENGINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"screening-systemv1/internal/indicator"
	"screening-systemv1/internal/logger"
	redisstore "screening-systemv1/internal/store/redis"
)

// Result store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config holds all application configuration.
type Config struct {
	// Result cache
	Backend   string            `mapstructure:"backend"`
	CacheRoot string            `mapstructure:"cache_root"`
	Redis     redisstore.Config `mapstructure:"redis"`

	// Quote source: a SQLite database or a CSV file
	QuotesDB  string `mapstructure:"quotes_db"`
	QuotesCSV string `mapstructure:"quotes_csv"`

	Workers  int           `mapstructure:"workers"`
	HTTPAddr string        `mapstructure:"http_addr"`
	Log      logger.Config `mapstructure:"log"`

	// Indicators to build. IndicatorSpecs is the compact env form,
	// appended after the YAML list.
	Indicators     []IndicatorSpec `mapstructure:"indicators"`
	IndicatorSpecs string          `mapstructure:"indicator_specs"`
}

// IndicatorSpec names a registered type and its parameter overrides.
type IndicatorSpec struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// String renders the spec in the compact TYPE:key=value;... form.
func (s IndicatorSpec) String() string {
	if len(s.Params) == 0 {
		return s.Type
	}
	parts := make([]string, 0, len(s.Params))
	for k, v := range s.Params {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return s.Type + ":" + strings.Join(parts, ";")
}

// Load reads configuration. path selects a config file; when empty,
// indengine.yaml is looked up in ./configs and the working directory and is
// optional. Environment variables override file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("INDENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("indengine")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.IndicatorSpecs != "" {
		specs, err := ParseIndicatorSpecs(cfg.IndicatorSpecs)
		if err != nil {
			return nil, err
		}
		cfg.Indicators = append(cfg.Indicators, specs...)
	}
	if len(cfg.Indicators) == 0 {
		cfg.Indicators = DefaultIndicators()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendFile)
	v.SetDefault("cache_root", "data/indicators")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "ind")
	v.SetDefault("redis.ttl", "0s")
	v.SetDefault("redis.max_failures", 5)
	v.SetDefault("redis.reset_timeout", "10s")
	v.SetDefault("quotes_db", "")
	v.SetDefault("quotes_csv", "")
	v.SetDefault("workers", 1)
	v.SetDefault("http_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)
	v.SetDefault("indicator_specs", "")
}

// DefaultIndicators is the set built when none is configured.
func DefaultIndicators() []IndicatorSpec {
	return []IndicatorSpec{
		{Type: indicator.TypeSMA, Params: map[string]any{"period": 20}},
		{Type: indicator.TypeEMA, Params: map[string]any{"period": 20}},
		{Type: indicator.TypeMACD},
		{Type: indicator.TypeRSI, Params: map[string]any{"period": 14}},
		{Type: indicator.TypeTrailingStops},
	}
}

// Validate fails fast on settings the engine cannot start with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.CacheRoot == "" {
			return errors.New("config: cache_root is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want %s or %s)", c.Backend, BackendFile, BackendRedis)
	}
	if c.QuotesDB != "" && c.QuotesCSV != "" {
		return errors.New("config: set only one of quotes_db and quotes_csv")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers=%d must be >= 0", c.Workers)
	}
	_, err := c.IndicatorConfigs()
	return err
}

// IndicatorConfigs decodes every configured indicator through the registry.
func (c *Config) IndicatorConfigs() ([]indicator.Config, error) {
	out := make([]indicator.Config, 0, len(c.Indicators))
	for _, spec := range c.Indicators {
		cfg, err := indicator.Decode(spec.Type, spec.Params)
		if err != nil {
			return nil, fmt.Errorf("config: indicator %s: %w", spec, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// ParseIndicatorSpecs parses "TYPE[:PARAMS],..." where PARAMS is either a
// bare period or key=value pairs joined by ';'.
// Example: "SMA:20,MACD:fast=8;slow=21,TrailingStops:multiplier=2.5;period=14"
func ParseIndicatorSpecs(s string) ([]IndicatorSpec, error) {
	var specs []IndicatorSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		typ, rest, _ := strings.Cut(part, ":")
		spec := IndicatorSpec{Type: strings.TrimSpace(typ)}
		if spec.Type == "" {
			return nil, fmt.Errorf("config: indicator spec %q has no type", part)
		}

		rest = strings.TrimSpace(rest)
		if rest != "" {
			spec.Params = map[string]any{}
			if !strings.Contains(rest, "=") {
				spec.Params["period"] = rest
			} else {
				for _, kv := range strings.Split(rest, ";") {
					k, v, ok := strings.Cut(kv, "=")
					k = strings.TrimSpace(k)
					if !ok || k == "" {
						return nil, fmt.Errorf("config: indicator spec %q: bad parameter %q", part, kv)
					}
					spec.Params[k] = strings.TrimSpace(v)
				}
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
