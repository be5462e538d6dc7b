// Package config loads teledispatch runtime configuration from a TOML file, a
// .env file and environment variables, exposing typed structs for all sections.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// HomeEnv names the environment variable that overrides the home directory.
const HomeEnv = "TELEDISPATCH_HOME"

// Config is the runtime configuration loaded from defaults, config.toml, and env vars.
type Config struct {
	// HomeDir is runtime-resolved from TELEDISPATCH_HOME and not read from config.
	HomeDir  string         `mapstructure:"-"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// TelegramConfig configures the Bot API client and the polling listener.
type TelegramConfig struct {
	Token          string        `mapstructure:"token"`
	ServerURL      string        `mapstructure:"server_url"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	PollLimit      int           `mapstructure:"poll_limit"`
	AllowedUpdates []string      `mapstructure:"allowed_updates"`
	// RequestTimeout bounds one HTTP call and must exceed PollTimeout.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DispatchConfig controls dispatcher behavior.
type DispatchConfig struct {
	LogUnhandled bool `mapstructure:"log_unhandled"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// StatsConfig configures the periodic processed-updates report. An empty
// schedule disables it.
type StatsConfig struct {
	ReportSchedule string `mapstructure:"report_schedule"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

var defaultConfig = Config{
	Telegram: TelegramConfig{
		Token:          "",
		ServerURL:      "https://api.telegram.org",
		PollTimeout:    10 * time.Second,
		PollLimit:      100,
		AllowedUpdates: []string{},
		RequestTimeout: 30 * time.Second,
	},
	Dispatch: DispatchConfig{
		LogUnhandled: true,
	},
	Metrics: MetricsConfig{
		Listen: "",
	},
	Stats: StatsConfig{
		ReportSchedule: "",
	},
	Tracing: TracingConfig{
		Enabled:     false,
		ServiceName: "teledispatch",
		Endpoint:    "localhost:4318",
		Insecure:    true,
		SampleRate:  1,
	},
}

// defaultUserConfig is the minimal bootstrap config written for first-time
// users. It contains only user-editable essentials and not the full runtime
// default surface.
var defaultUserConfig = Config{
	Telegram: TelegramConfig{
		Token:       "$TELEGRAM_BOT_TOKEN",
		PollTimeout: 10 * time.Second,
	},
	Dispatch: DispatchConfig{
		LogUnhandled: true,
	},
	Metrics: MetricsConfig{
		Listen: "127.0.0.1:9464",
	},
	Stats: StatsConfig{
		ReportSchedule: "@every 1h",
	},
}

// homeDir returns the teledispatch home directory.
// Uses TELEDISPATCH_HOME env var if set, otherwise defaults to ~/.teledispatch.
func homeDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return defaultHomePath(home), nil
}

// HomeDir resolves the home directory without loading the config.
func HomeDir() (string, error) {
	return homeDir()
}

// Load merges hardcoded defaults and config file values in that order.
// Variables from $TELEDISPATCH_HOME/.env are exported first so config values
// like "$TELEGRAM_BOT_TOKEN" can refer to them. Variables already set in the
// environment win over the .env file.
func Load() (*Config, error) {
	homeDir, err := homeDir()
	if err != nil {
		return nil, err
	}
	if err := loadEnvFile(homeEnvPath(homeDir)); err != nil {
		return nil, err
	}

	v, err := newViper(homeDir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		expandEnvStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HomeDir = homeDir

	return &cfg, nil
}

// Write writes the merged configuration (defaults overlaid by user
// config) to w in TOML format.
func Write(w io.Writer) error {
	if w == nil {
		return errors.New("writer is required")
	}

	homeDir, err := homeDir()
	if err != nil {
		return err
	}
	v, err := newViper(homeDir)
	if err != nil {
		return err
	}

	// Keep duration fields human-readable in generated TOML.
	v.Set("telegram.poll_timeout", v.GetDuration("telegram.poll_timeout").String())
	v.Set("telegram.request_timeout", v.GetDuration("telegram.request_timeout").String())

	if err := v.WriteConfigTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultUserConfigTOML renders the minimal bootstrap user config as TOML.
func DefaultUserConfigTOML() (string, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.Set("telegram.token", defaultUserConfig.Telegram.Token)
	v.Set("telegram.poll_timeout", defaultUserConfig.Telegram.PollTimeout.String())
	v.Set("dispatch.log_unhandled", defaultUserConfig.Dispatch.LogUnhandled)
	v.Set("metrics.listen", defaultUserConfig.Metrics.Listen)
	v.Set("stats.report_schedule", defaultUserConfig.Stats.ReportSchedule)

	var out bytes.Buffer
	if err := v.WriteConfigTo(&out); err != nil {
		return "", fmt.Errorf("write default user config: %w", err)
	}
	return out.String(), nil
}

func newViper(homeDir string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(homeConfigPath(homeDir))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", defaultConfig.Telegram.Token)
	v.SetDefault("telegram.server_url", defaultConfig.Telegram.ServerURL)
	v.SetDefault("telegram.poll_timeout", defaultConfig.Telegram.PollTimeout)
	v.SetDefault("telegram.poll_limit", defaultConfig.Telegram.PollLimit)
	v.SetDefault("telegram.allowed_updates", defaultConfig.Telegram.AllowedUpdates)
	v.SetDefault("telegram.request_timeout", defaultConfig.Telegram.RequestTimeout)

	v.SetDefault("dispatch.log_unhandled", defaultConfig.Dispatch.LogUnhandled)

	v.SetDefault("metrics.listen", defaultConfig.Metrics.Listen)

	v.SetDefault("stats.report_schedule", defaultConfig.Stats.ReportSchedule)

	v.SetDefault("tracing.enabled", defaultConfig.Tracing.Enabled)
	v.SetDefault("tracing.service_name", defaultConfig.Tracing.ServiceName)
	v.SetDefault("tracing.endpoint", defaultConfig.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", defaultConfig.Tracing.Insecure)
	v.SetDefault("tracing.sample_rate", defaultConfig.Tracing.SampleRate)
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func expandEnvStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		value, ok := data.(string)
		if !ok {
			return data, nil
		}
		return os.ExpandEnv(value), nil
	}
}
