package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sile/magpies/internal/series"
)

const (
	configDirName  = ".magpies"
	configFileName = "config.yaml"
	logFileName    = "magpies.log"

	envPrefix     = "MAGPIES"
	envConfigPath = "MAGPIES_CONFIG"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
}

type Config struct {
	View    ViewConfig    `yaml:"view" json:"view"`
	Poll    PollConfig    `yaml:"poll" json:"poll"`
	TUI     TUIConfig     `yaml:"tui" json:"tui"`
	Logs    LogsConfig    `yaml:"logs" json:"logs"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

type ViewConfig struct {
	Interval   string `yaml:"interval" json:"interval"`
	Visible    int    `yaml:"visible" json:"visible"` // 0 = derived from terminal width
	Filter     string `yaml:"filter" json:"filter"`
	FilterMode string `yaml:"filterMode" json:"filterMode"`
	Follow     bool   `yaml:"follow" json:"follow"`
	Decimals   int    `yaml:"decimals" json:"decimals"`
}

type PollConfig struct {
	Interval string `yaml:"interval" json:"interval"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

type TUIConfig struct {
	Colors          bool   `yaml:"colors" json:"colors"`
	AltScreen       bool   `yaml:"altScreen" json:"altScreen"`
	RefreshInterval string `yaml:"refreshInterval" json:"refreshInterval"`
	MaxUnionItems   int    `yaml:"maxUnionItems" json:"maxUnionItems"`
}

type LogsConfig struct {
	Path       string `yaml:"path" json:"path"`
	Level      string `yaml:"level" json:"level"`
	MaxSizeMB  int    `yaml:"maxSizeMB" json:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups" json:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays" json:"maxAgeDays"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

type MetricsConfig struct {
	Address string `yaml:"address" json:"address"`
}

func Default() *Config {
	return &Config{
		View: ViewConfig{
			Interval:   "1s",
			Visible:    0,
			Filter:     "",
			FilterMode: "substring",
			Follow:     false,
			Decimals:   3,
		},
		Poll: PollConfig{
			Interval: "1s",
			Timeout:  "10s",
		},
		TUI: TUIConfig{
			Colors:          true,
			AltScreen:       true,
			RefreshInterval: "1s",
			MaxUnionItems:   8,
		},
		Logs: LogsConfig{
			Path:       "",
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   false,
		},
		Metrics: MetricsConfig{
			Address: "",
		},
	}
}

// Dir is ~/.magpies.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName), nil
}

// FilePath honours MAGPIES_CONFIG, then falls back to ~/.magpies/config.yaml.
func FilePath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(envConfigPath)); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func Load() (*Config, error) {
	path, err := FilePath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads path (a missing file yields the defaults) and applies
// MAGPIES_* environment overrides such as MAGPIES_VIEW_INTERVAL.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	cfg := fromViper(v)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("view.interval", d.View.Interval)
	v.SetDefault("view.visible", d.View.Visible)
	v.SetDefault("view.filter", d.View.Filter)
	v.SetDefault("view.filterMode", d.View.FilterMode)
	v.SetDefault("view.follow", d.View.Follow)
	v.SetDefault("view.decimals", d.View.Decimals)

	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.timeout", d.Poll.Timeout)

	v.SetDefault("tui.colors", d.TUI.Colors)
	v.SetDefault("tui.altScreen", d.TUI.AltScreen)
	v.SetDefault("tui.refreshInterval", d.TUI.RefreshInterval)
	v.SetDefault("tui.maxUnionItems", d.TUI.MaxUnionItems)

	v.SetDefault("logs.path", d.Logs.Path)
	v.SetDefault("logs.level", d.Logs.Level)
	v.SetDefault("logs.maxSizeMB", d.Logs.MaxSizeMB)
	v.SetDefault("logs.maxBackups", d.Logs.MaxBackups)
	v.SetDefault("logs.maxAgeDays", d.Logs.MaxAgeDays)
	v.SetDefault("logs.compress", d.Logs.Compress)

	v.SetDefault("metrics.address", d.Metrics.Address)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.View.Interval = v.GetString("view.interval")
	cfg.View.Visible = v.GetInt("view.visible")
	cfg.View.Filter = v.GetString("view.filter")
	cfg.View.FilterMode = v.GetString("view.filterMode")
	cfg.View.Follow = v.GetBool("view.follow")
	cfg.View.Decimals = v.GetInt("view.decimals")

	cfg.Poll.Interval = v.GetString("poll.interval")
	cfg.Poll.Timeout = v.GetString("poll.timeout")

	cfg.TUI.Colors = v.GetBool("tui.colors")
	cfg.TUI.AltScreen = v.GetBool("tui.altScreen")
	cfg.TUI.RefreshInterval = v.GetString("tui.refreshInterval")
	cfg.TUI.MaxUnionItems = v.GetInt("tui.maxUnionItems")

	cfg.Logs.Path = v.GetString("logs.path")
	cfg.Logs.Level = v.GetString("logs.level")
	cfg.Logs.MaxSizeMB = v.GetInt("logs.maxSizeMB")
	cfg.Logs.MaxBackups = v.GetInt("logs.maxBackups")
	cfg.Logs.MaxAgeDays = v.GetInt("logs.maxAgeDays")
	cfg.Logs.Compress = v.GetBool("logs.compress")

	cfg.Metrics.Address = v.GetString("metrics.address")
	return cfg
}

func Save(cfg *Config) error {
	path, err := FilePath()
	if err != nil {
		return err
	}
	return SaveFile(cfg, path)
}

func SaveFile(cfg *Config, path string) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := parsePositiveDuration(c.View.Interval, "view.interval"); err != nil {
		return err
	}
	if c.View.Visible < 0 || c.View.Visible > 10000 {
		return fmt.Errorf("view.visible must be between 0 and 10000")
	}
	if _, err := series.ParseFilterMode(c.View.FilterMode); err != nil {
		return fmt.Errorf("view.filterMode: %w", err)
	}
	if _, err := series.NewFilter(c.View.Filter, c.ViewFilterMode()); err != nil {
		return fmt.Errorf("view.filter: %w", err)
	}
	if c.View.Decimals < 0 || c.View.Decimals > 12 {
		return fmt.Errorf("view.decimals must be between 0 and 12")
	}
	if _, err := parsePositiveDuration(c.Poll.Interval, "poll.interval"); err != nil {
		return err
	}
	if _, err := parsePositiveDuration(c.Poll.Timeout, "poll.timeout"); err != nil {
		return err
	}
	if _, err := parsePositiveDuration(c.TUI.RefreshInterval, "tui.refreshInterval"); err != nil {
		return err
	}
	if c.TUI.MaxUnionItems < 0 {
		return fmt.Errorf("tui.maxUnionItems must be >= 0")
	}
	if _, ok := allowedLogLevels[c.Logs.Level]; !ok {
		return fmt.Errorf("logs.level must be one of: debug, info, warn, error")
	}
	if c.Logs.MaxSizeMB < 1 {
		return fmt.Errorf("logs.maxSizeMB must be >= 1")
	}
	if c.Logs.MaxBackups < 0 || c.Logs.MaxAgeDays < 0 {
		return fmt.Errorf("logs.maxBackups and logs.maxAgeDays must be >= 0")
	}
	return nil
}

// IntervalSeconds is the view interval width in seconds.
func (c *Config) IntervalSeconds() float64 {
	d, err := parsePositiveDuration(c.View.Interval, "view.interval")
	if err != nil {
		return 1
	}
	return d.Seconds()
}

func (c *Config) ViewFilterMode() series.FilterMode {
	m, _ := series.ParseFilterMode(c.View.FilterMode)
	return m
}

func (c *Config) PollIntervalDuration() time.Duration {
	return durationOr(c.Poll.Interval, time.Second)
}

func (c *Config) PollTimeoutDuration() time.Duration {
	return durationOr(c.Poll.Timeout, 10*time.Second)
}

func (c *Config) RefreshIntervalDuration() time.Duration {
	return durationOr(c.TUI.RefreshInterval, time.Second)
}

// LogPath is logs.path, or ~/.magpies/magpies.log when unset.
func (c *Config) LogPath() string {
	if p := strings.TrimSpace(c.Logs.Path); p != "" {
		return p
	}
	dir, err := Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, logFileName)
}

func (c *Config) SetByKey(key, value string) error {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return fmt.Errorf("key cannot be empty")
	}
	v := strings.TrimSpace(value)
	switch k {
	case "view.interval":
		c.View.Interval = v
	case "view.visible":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("view.visible must be an integer")
		}
		c.View.Visible = n
	case "view.filter":
		c.View.Filter = value
	case "view.filtermode", "view.filter_mode":
		c.View.FilterMode = strings.ToLower(v)
	case "view.follow":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("view.follow must be true or false")
		}
		c.View.Follow = b
	case "view.decimals":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("view.decimals must be an integer")
		}
		c.View.Decimals = n
	case "poll.interval":
		c.Poll.Interval = v
	case "poll.timeout":
		c.Poll.Timeout = v
	case "tui.colors":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("tui.colors must be true or false")
		}
		c.TUI.Colors = b
	case "tui.altscreen", "tui.alt_screen":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("tui.altScreen must be true or false")
		}
		c.TUI.AltScreen = b
	case "tui.refreshinterval", "tui.refresh_interval":
		c.TUI.RefreshInterval = v
	case "tui.maxunionitems", "tui.max_union_items":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("tui.maxUnionItems must be an integer")
		}
		c.TUI.MaxUnionItems = n
	case "logs.path":
		c.Logs.Path = v
	case "logs.level":
		c.Logs.Level = strings.ToLower(v)
	case "logs.maxsizemb", "logs.max_size_mb":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("logs.maxSizeMB must be an integer")
		}
		c.Logs.MaxSizeMB = n
	case "logs.maxbackups", "logs.max_backups":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("logs.maxBackups must be an integer")
		}
		c.Logs.MaxBackups = n
	case "logs.maxagedays", "logs.max_age_days":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("logs.maxAgeDays must be an integer")
		}
		c.Logs.MaxAgeDays = n
	case "logs.compress":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("logs.compress must be true or false")
		}
		c.Logs.Compress = b
	case "metrics.address":
		c.Metrics.Address = v
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
	c.normalize()
	return c.Validate()
}

func (c *Config) GetByKey(key string) (any, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	switch k {
	case "view.interval":
		return c.View.Interval, nil
	case "view.visible":
		return c.View.Visible, nil
	case "view.filter":
		return c.View.Filter, nil
	case "view.filtermode", "view.filter_mode":
		return c.View.FilterMode, nil
	case "view.follow":
		return c.View.Follow, nil
	case "view.decimals":
		return c.View.Decimals, nil
	case "poll.interval":
		return c.Poll.Interval, nil
	case "poll.timeout":
		return c.Poll.Timeout, nil
	case "tui.colors":
		return c.TUI.Colors, nil
	case "tui.altscreen", "tui.alt_screen":
		return c.TUI.AltScreen, nil
	case "tui.refreshinterval", "tui.refresh_interval":
		return c.TUI.RefreshInterval, nil
	case "tui.maxunionitems", "tui.max_union_items":
		return c.TUI.MaxUnionItems, nil
	case "logs.path":
		return c.Logs.Path, nil
	case "logs.level":
		return c.Logs.Level, nil
	case "logs.maxsizemb", "logs.max_size_mb":
		return c.Logs.MaxSizeMB, nil
	case "logs.maxbackups", "logs.max_backups":
		return c.Logs.MaxBackups, nil
	case "logs.maxagedays", "logs.max_age_days":
		return c.Logs.MaxAgeDays, nil
	case "logs.compress":
		return c.Logs.Compress, nil
	case "metrics.address":
		return c.Metrics.Address, nil
	default:
		return nil, fmt.Errorf("unsupported key %q", key)
	}
}

func (c *Config) ToYAML() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Config) ToJSON() (string, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Config) normalize() {
	c.View.Interval = strings.TrimSpace(c.View.Interval)
	c.View.FilterMode = strings.ToLower(strings.TrimSpace(c.View.FilterMode))
	if c.View.FilterMode == "" {
		c.View.FilterMode = "substring"
	}
	c.Poll.Interval = strings.TrimSpace(c.Poll.Interval)
	c.Poll.Timeout = strings.TrimSpace(c.Poll.Timeout)
	c.TUI.RefreshInterval = strings.TrimSpace(c.TUI.RefreshInterval)
	c.Logs.Path = strings.TrimSpace(c.Logs.Path)
	c.Logs.Level = strings.ToLower(strings.TrimSpace(c.Logs.Level))
	c.Metrics.Address = strings.TrimSpace(c.Metrics.Address)
}

func parsePositiveDuration(v, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

func durationOr(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
