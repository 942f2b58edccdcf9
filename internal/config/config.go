// Package config loads and validates monitor configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/runwatch/internal/eventsource"
	"github.com/JakeFAU/runwatch/internal/seed"
)

// Config captures all monitor configuration knobs loaded via Viper.
type Config struct {
	Streams   StreamsConfig   `mapstructure:"streams" yaml:"streams"`
	Monitor   MonitorConfig   `mapstructure:"monitor" yaml:"monitor"`
	Watchdog  WatchdogConfig  `mapstructure:"watchdog" yaml:"watchdog"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// StreamsConfig locates the three SSE channels. Explicit URLs win over the
// ones derived from BaseURL and the monitor category.
type StreamsConfig struct {
	BaseURL    string            `mapstructure:"base_url" yaml:"base_url"`
	Logs       string            `mapstructure:"logs" yaml:"logs"`
	Progress   string            `mapstructure:"progress" yaml:"progress"`
	Heartbeats string            `mapstructure:"heartbeats" yaml:"heartbeats"`
	Headers    map[string]string `mapstructure:"headers" yaml:"headers"`
	BufferSize int               `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// MonitorConfig seeds the page.
type MonitorConfig struct {
	Category            string `mapstructure:"category" yaml:"category"`
	InitialProgress     string `mapstructure:"initial_progress" yaml:"initial_progress"`
	InitialProgressFile string `mapstructure:"initial_progress_file" yaml:"initial_progress_file"`
	HistoryFile         string `mapstructure:"history_file" yaml:"history_file"`
	ActionURL           string `mapstructure:"action_url" yaml:"action_url"`
}

// WatchdogConfig tunes heartbeat polling.
type WatchdogConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LogConfig bounds the log pane.
type LogConfig struct {
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// ServerConfig controls the optional HTTP surface.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port" yaml:"port"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development" yaml:"development"`
	Level       string `mapstructure:"level" yaml:"level"`
}

// TelemetryConfig controls span recording.
type TelemetryConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	ServiceName    string `mapstructure:"service_name" yaml:"service_name"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"base-url":         "streams.base_url",
	"category":         "monitor.category",
	"initial-progress": "monitor.initial_progress",
	"history-file":     "monitor.history_file",
	"action-url":       "monitor.action_url",
	"max-entries":      "log.max_entries",
	"server":           "server.enabled",
	"port":             "server.port",
	"log-level":        "logging.level",
	"tracing":          "telemetry.tracing_enabled",
}

// Load builds a Config from the file at path (if any) and the environment.
func Load(path string) (Config, error) {
	return load(path, nil, false)
}

// LoadWithFlags is Load with flags layered on top. Only flags the user set
// override file and environment values. With an empty path it looks for
// runwatch.yaml in ., $HOME/.runwatch and /etc/runwatch.
func LoadWithFlags(path string, flags *pflag.FlagSet) (Config, error) {
	return load(path, flags, true)
}

func load(path string, flags *pflag.FlagSet, searchPaths bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RUNWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if searchPaths {
		v.SetConfigName("runwatch")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.runwatch")
		v.AddConfigPath("/etc/runwatch/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a useful default are still registered so AutomaticEnv
	// can fill them during Unmarshal.
	v.SetDefault("streams.base_url", "")
	v.SetDefault("streams.logs", "")
	v.SetDefault("streams.progress", "")
	v.SetDefault("streams.heartbeats", "")
	v.SetDefault("streams.buffer_size", 256)
	v.SetDefault("monitor.category", string(seed.CategoryRun))
	v.SetDefault("monitor.initial_progress", "")
	v.SetDefault("monitor.initial_progress_file", "")
	v.SetDefault("monitor.history_file", "")
	v.SetDefault("monitor.action_url", "/run/add_detector_tool/image")
	v.SetDefault("watchdog.poll_interval", "1s")
	v.SetDefault("watchdog.timeout", "2s")
	v.SetDefault("log.max_entries", 0)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.service_name", "runwatch")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := c.Category(); err != nil {
		return fmt.Errorf("monitor.category: %w", err)
	}
	if _, err := c.Endpoints(); err != nil {
		return err
	}
	if c.Watchdog.PollInterval <= 0 {
		return errors.New("watchdog.poll_interval must be > 0")
	}
	if c.Watchdog.Timeout <= 0 {
		return errors.New("watchdog.timeout must be > 0")
	}
	if c.Log.MaxEntries < 0 {
		return errors.New("log.max_entries must be >= 0")
	}
	if c.Streams.BufferSize < 0 {
		return errors.New("streams.buffer_size must be >= 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return errors.New("server.port must be > 0 when the server is enabled")
	}
	if c.Telemetry.TracingEnabled && c.Telemetry.ServiceName == "" {
		return errors.New("telemetry.service_name is required when tracing is enabled")
	}
	return nil
}

// Category returns the validated monitor category.
func (c Config) Category() (seed.Category, error) {
	return seed.ParseCategory(c.Monitor.Category)
}

// Endpoints resolves the three subscription URLs. A channel without an
// explicit URL is derived as <base_url>?channel=<category>_<channel>.
func (c Config) Endpoints() (eventsource.Endpoints, error) {
	ep := eventsource.Endpoints{
		Logs:       c.Streams.Logs,
		Progress:   c.Streams.Progress,
		Heartbeats: c.Streams.Heartbeats,
	}
	if ep.Logs == "" || ep.Progress == "" || ep.Heartbeats == "" {
		if c.Streams.BaseURL == "" {
			return eventsource.Endpoints{}, errors.New("streams.base_url is required unless every stream URL is set")
		}
		category, err := c.Category()
		if err != nil {
			return eventsource.Endpoints{}, fmt.Errorf("monitor.category: %w", err)
		}
		logs, prog, heartbeats := category.Channels()
		for _, d := range []struct {
			dst     *string
			channel string
		}{
			{&ep.Logs, logs},
			{&ep.Progress, prog},
			{&ep.Heartbeats, heartbeats},
		} {
			if *d.dst != "" {
				continue
			}
			u, err := channelURL(c.Streams.BaseURL, d.channel)
			if err != nil {
				return eventsource.Endpoints{}, err
			}
			*d.dst = u
		}
	}
	if err := ep.Validate(); err != nil {
		return eventsource.Endpoints{}, fmt.Errorf("streams: %w", err)
	}
	return ep, nil
}

func channelURL(base, channel string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("streams.base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("streams.base_url %q must be absolute", base)
	}
	q := u.Query()
	q.Set("channel", channel)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Redacted returns a copy safe to print: the API key and header values are
// masked.
func (c Config) Redacted() Config {
	const mask = "****"
	if c.Server.APIKey != "" {
		c.Server.APIKey = mask
	}
	if len(c.Streams.Headers) > 0 {
		headers := make(map[string]string, len(c.Streams.Headers))
		for k := range c.Streams.Headers {
			headers[k] = mask
		}
		c.Streams.Headers = headers
	}
	return c
}

// EventSource builds the subscription settings.
func (c Config) EventSource() (eventsource.Config, error) {
	ep, err := c.Endpoints()
	if err != nil {
		return eventsource.Config{}, err
	}
	return eventsource.Config{
		Endpoints:  ep,
		Headers:    c.Streams.Headers,
		BufferSize: c.Streams.BufferSize,
	}, nil
}
