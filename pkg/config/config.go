// Package config loads monitor settings from defaults, an optional YAML file
// and OBDVE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/table"
)

// EnvPrefix is prepended to every environment override, e.g. OBDVE_PORT
const EnvPrefix = "OBDVE"

// Config holds every tunable of the monitor
type Config struct {
	Port                   string        `mapstructure:"port"`
	BaudRate               int           `mapstructure:"baud_rate"`
	QueryTimeout           time.Duration `mapstructure:"query_timeout"`
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	ReconnectInterval      time.Duration `mapstructure:"reconnect_interval"`
	Cylinders              int           `mapstructure:"cylinders"`
	O2Mode                 string        `mapstructure:"o2_mode"`
	Demo                   bool          `mapstructure:"demo"`
	DemoSeed               int64         `mapstructure:"demo_seed"`
	SubstituteOnQueryError bool          `mapstructure:"substitute_on_query_error"`
	HistorySize            int           `mapstructure:"history_size"`
	RPMAxis                table.Axis    `mapstructure:"rpm_axis"`
	MAPAxis                table.Axis    `mapstructure:"map_axis"`
	Listen                 string        `mapstructure:"listen"`
	Debug                  bool          `mapstructure:"debug"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		BaudRate:          38400,
		QueryTimeout:      2 * time.Second,
		PollInterval:      500 * time.Millisecond,
		ReconnectInterval: 5 * time.Second,
		Cylinders:         8,
		O2Mode:            models.O2Lambda.String(),
		DemoSeed:          1,
		HistorySize:       100,
		RPMAxis:           table.DefaultRPMAxis,
		MAPAxis:           table.DefaultMAPAxis,
		Listen:            "localhost:8080",
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("port", d.Port)
	v.SetDefault("baud_rate", d.BaudRate)
	v.SetDefault("query_timeout", d.QueryTimeout)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("reconnect_interval", d.ReconnectInterval)
	v.SetDefault("cylinders", d.Cylinders)
	v.SetDefault("o2_mode", d.O2Mode)
	v.SetDefault("demo", d.Demo)
	v.SetDefault("demo_seed", d.DemoSeed)
	v.SetDefault("substitute_on_query_error", d.SubstituteOnQueryError)
	v.SetDefault("history_size", d.HistorySize)
	v.SetDefault("rpm_axis.start", d.RPMAxis.Start)
	v.SetDefault("rpm_axis.step", d.RPMAxis.Step)
	v.SetDefault("rpm_axis.count", d.RPMAxis.Count)
	v.SetDefault("map_axis.start", d.MAPAxis.Start)
	v.SetDefault("map_axis.step", d.MAPAxis.Step)
	v.SetDefault("map_axis.count", d.MAPAxis.Count)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("debug", d.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. With an empty path obdve.yaml is searched
// for in the working directory, ./config and $HOME/.obdve; a missing file
// is not an error. The second return value names the file used, if any.
func Load(path string) (Config, string, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("obdve")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.obdve")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

// Save writes cfg as YAML to path
func Save(cfg Config, path string) error {
	v := viper.New()
	v.Set("port", cfg.Port)
	v.Set("baud_rate", cfg.BaudRate)
	v.Set("query_timeout", cfg.QueryTimeout.String())
	v.Set("poll_interval", cfg.PollInterval.String())
	v.Set("reconnect_interval", cfg.ReconnectInterval.String())
	v.Set("cylinders", cfg.Cylinders)
	v.Set("o2_mode", cfg.O2Mode)
	v.Set("demo", cfg.Demo)
	v.Set("demo_seed", cfg.DemoSeed)
	v.Set("substitute_on_query_error", cfg.SubstituteOnQueryError)
	v.Set("history_size", cfg.HistorySize)
	v.Set("rpm_axis", map[string]any{"start": cfg.RPMAxis.Start, "step": cfg.RPMAxis.Step, "count": cfg.RPMAxis.Count})
	v.Set("map_axis", map[string]any{"start": cfg.MAPAxis.Start, "step": cfg.MAPAxis.Step, "count": cfg.MAPAxis.Count})
	v.Set("listen", cfg.Listen)
	v.Set("debug", cfg.Debug)

	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the monitor cannot run with
func (c Config) Validate() error {
	if c.Cylinders <= 0 {
		return fmt.Errorf("cylinders must be positive, got %d", c.Cylinders)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %s", c.QueryTimeout)
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect_interval must be positive, got %s", c.ReconnectInterval)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", c.HistorySize)
	}
	if _, err := models.ParseO2Mode(c.O2Mode); err != nil {
		return err
	}
	if err := c.RPMAxis.Validate(); err != nil {
		return fmt.Errorf("rpm_axis: %w", err)
	}
	if err := c.MAPAxis.Validate(); err != nil {
		return fmt.Errorf("map_axis: %w", err)
	}
	return nil
}

// Mode returns the parsed O2 display mode, falling back to lambda
func (c Config) Mode() models.O2Mode {
	m, err := models.ParseO2Mode(c.O2Mode)
	if err != nil {
		return models.O2Lambda
	}
	return m
}
