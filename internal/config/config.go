// Package config loads the application configuration from a YAML file,
// environment variables and struct tag defaults, in that order of
// precedence (env wins over file, file wins over defaults).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcelveldt/music-assistant/internal/database"
)

// Config holds the complete application configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  database.Config  `yaml:"database"`
	Logging   LoggingConfig    `yaml:"logging"`
	Cache     CacheConfig      `yaml:"cache"`
	Sync      SyncConfig       `yaml:"sync"`
	Streaming StreamingConfig  `yaml:"streaming"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ServerConfig holds the HTTP listener settings. BaseURL is the address
// players use to reach the stream endpoints; when empty it is derived
// from host and port.
type ServerConfig struct {
	Host    string `yaml:"host" env:"MASS_HOST" default:"0.0.0.0"`
	Port    int    `yaml:"port" env:"MASS_PORT" default:"8095"`
	BaseURL string `yaml:"base_url" env:"MASS_BASE_URL"`
}

// LoggingConfig controls the root logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"MASS_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"MASS_LOG_FORMAT" default:"text"`
}

// CacheConfig tunes the in-memory item cache.
type CacheConfig struct {
	MaxSize int `yaml:"max_size" env:"MASS_CACHE_SIZE" default:"4096"`
}

// SyncConfig controls the background library sync.
type SyncConfig struct {
	Interval time.Duration `yaml:"interval" env:"MASS_SYNC_INTERVAL" default:"3h"`
}

// StreamingConfig controls volume normalization of served streams.
// FallbackGain corrects tracks whose loudness has not been measured yet.
type StreamingConfig struct {
	Normalization  bool    `yaml:"normalization" env:"MASS_NORMALIZATION" default:"true"`
	TargetLoudness float64 `yaml:"target_loudness" env:"MASS_TARGET_LOUDNESS" default:"-17"`
	FallbackGain   float64 `yaml:"fallback_gain" env:"MASS_FALLBACK_GAIN" default:"-12"`
}

// ProviderConfig describes one configured provider instance.
type ProviderConfig struct {
	InstanceID string  `yaml:"instance_id"`
	Domain     string  `yaml:"domain"`
	MusicDir   string  `yaml:"music_dir"`
	RateLimit  float64 `yaml:"rate_limit"`
}

// Load reads the configuration from path. A missing file is not an
// error: defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(reflect.ValueOf(cfg).Elem())

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, err
	}
	if cfg.Server.BaseURL == "" {
		host := cfg.Server.Host
		if host == "0.0.0.0" || host == "" {
			host = "localhost"
		}
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	return cfg, nil
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyDefaults(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			applyDefaults(field)
			continue
		}
		def := t.Field(i).Tag.Get("default")
		if def == "" || !field.IsZero() {
			continue
		}
		// defaults are authored in the source, a parse failure is a bug
		_ = setField(field, def)
	}
}

func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}
		key := t.Field(i).Tag.Get("env")
		if key == "" {
			continue
		}
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported config field kind %s", field.Kind())
	}
	return nil
}
