package sessionbridge

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by LoadConfig.
const EnvPrefix = "SESSION_BRIDGE_"

// Config is the file/environment view of a single provider plus process settings.
type Config struct {
	BaseURL  string `yaml:"base_url"  env:"BASE_URL"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	UseProviderLimits bool          `yaml:"use_provider_limits" env:"USE_PROVIDER_LIMITS"`
	MaxRetries        int           `yaml:"max_retries"         env:"MAX_RETRIES"`
	BaseBackoff       time.Duration `yaml:"base_backoff"        env:"BASE_BACKOFF"`

	RenewalEndpoint string        `yaml:"renewal_endpoint" env:"RENEWAL_ENDPOINT"`
	RenewalMethod   string        `yaml:"renewal_method"   env:"RENEWAL_METHOD"`
	RenewalTimeout  time.Duration `yaml:"renewal_timeout"  env:"RENEWAL_TIMEOUT"`

	AnonymousEndpoints []string `yaml:"anonymous_endpoints" env:"ANONYMOUS_ENDPOINTS" envSeparator:","`

	LoginPath   string   `yaml:"login_path"   env:"LOGIN_PATH"`
	PublicPaths []string `yaml:"public_paths" env:"PUBLIC_PATHS" envSeparator:","`
}

// DefaultConfig returns the configuration used when neither file nor environment set a value.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "http://localhost:8080",
		LogLevel:           "info",
		UseProviderLimits:  true,
		MaxRetries:         3,
		BaseBackoff:        time.Second,
		RenewalEndpoint:    DefaultRenewalEndpoint,
		RenewalMethod:      "POST",
		RenewalTimeout:     DefaultRenewalTimeout,
		AnonymousEndpoints: []string{DefaultLoginEndpoint},
		LoginPath:          DefaultLoginPath,
		PublicPaths:        slices.Clone(DefaultPublicPaths),
	}
}

// LoadConfig layers defaults, the optional YAML file at path, and SESSION_BRIDGE_* variables.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ProviderConfig converts the loaded settings into a ProviderConfig.
func (c Config) ProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		UseProviderLimits:  c.UseProviderLimits,
		MaxRetries:         c.MaxRetries,
		BaseBackoff:        c.BaseBackoff,
		RenewalEndpoint:    c.RenewalEndpoint,
		RenewalMethod:      strings.ToUpper(c.RenewalMethod),
		RenewalTimeout:     c.RenewalTimeout,
		AnonymousEndpoints: slices.Clone(c.AnonymousEndpoints),
		LoginPath:          c.LoginPath,
		PublicPaths:        slices.Clone(c.PublicPaths),
	}
}

// Level maps LogLevel onto slog levels, defaulting to info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
