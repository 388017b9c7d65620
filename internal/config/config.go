// Package config loads service and CLI configuration.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML
// config file, OSSXML_* environment variables, runtime overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/ossxml/pkg/crawler"
	"github.com/3leaps/ossxml/pkg/provider/oss"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "OSSXML"

// ConfigEnv names a config file to load when Load is given none.
const ConfigEnv = EnvPrefix + "_CONFIG"

// Config is the application configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Health  HealthConfig   `mapstructure:"health"`
	OSS     oss.Config     `mapstructure:"oss"`
	Crawl   crawler.Config `mapstructure:"crawl"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// MaxBodyBytes caps request bodies on the decode endpoints.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"gt=0"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Profile string `mapstructure:"profile" validate:"oneof=STRUCTURED CONSOLE"`
}

type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 16<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("health.enabled", true)

	v.SetDefault("oss.bucket", "")
	v.SetDefault("oss.endpoint", "")
	v.SetDefault("oss.endpoint_url", "")
	v.SetDefault("oss.force_path_style", false)
	v.SetDefault("oss.region", "")
	v.SetDefault("oss.profile", "")
	v.SetDefault("oss.access_key_id", "")
	v.SetDefault("oss.secret_access_key", "")
	v.SetDefault("oss.anonymous", false)
	v.SetDefault("oss.max_keys", oss.DefaultMaxKeys)
	v.SetDefault("oss.rate_limit", 0)
	v.SetDefault("oss.timeout", oss.DefaultTimeout.String())

	def := crawler.DefaultConfig()
	v.SetDefault("crawl.concurrency", def.Concurrency)
	v.SetDefault("crawl.channel_buffer", def.ChannelBuffer)
	v.SetDefault("crawl.rate_limit", 0)
	v.SetDefault("crawl.progress_every", def.ProgressEvery)
	v.SetDefault("crawl.page_size", 0)
	v.SetDefault("crawl.delimiter", "")
	v.SetDefault("crawl.max_depth", 0)
	v.SetDefault("crawl.enrich", false)
}

// EnvSpec maps an environment variable to a config key.
type EnvSpec struct {
	Name string
	Path string
}

// shortEnv are aliases kept short for container deployments.
var shortEnv = []EnvSpec{
	{Name: "HOST", Path: "server.host"},
	{Name: "PORT", Path: "server.port"},
	{Name: "READ_TIMEOUT", Path: "server.read_timeout"},
	{Name: "WRITE_TIMEOUT", Path: "server.write_timeout"},
	{Name: "SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
	{Name: "LOG_LEVEL", Path: "logging.level"},
	{Name: "LOG_PROFILE", Path: "logging.profile"},
	{Name: "BUCKET", Path: "oss.bucket"},
	{Name: "ENDPOINT", Path: "oss.endpoint"},
	{Name: "ACCESS_KEY_ID", Path: "oss.access_key_id"},
	{Name: "SECRET_ACCESS_KEY", Path: "oss.secret_access_key"},
}

// EnvSpecs lists the short environment aliases with their prefix applied.
// Every key is also reachable as OSSXML_<SECTION>_<KEY>.
func EnvSpecs() []EnvSpec {
	out := make([]EnvSpec, len(shortEnv))
	for i, s := range shortEnv {
		out[i] = EnvSpec{Name: EnvPrefix + "_" + s.Name, Path: s.Path}
	}
	return out
}

var (
	configMu  sync.RWMutex
	appConfig *Config
	validate  = validator.New()
)

// Load builds the configuration and makes it the current one. The config
// file named by OSSXML_CONFIG is read when set. Each override is a nested
// map whose leaves win over every other source.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, os.Getenv(ConfigEnv), overrides...)
}

// LoadFile is Load with an explicit config file. An empty path skips it.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, s := range EnvSpecs() {
		full := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(s.Path, ".", "_"))
		if err := v.BindEnv(s.Path, full, s.Name); err != nil {
			return nil, err
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Logging.Profile = strings.ToUpper(cfg.Logging.Profile)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if err := validate.Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("invalid config: %s: failed %s %s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}
