// Package config loads the agenda settings from .agenda.yaml and AGENDA_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"tableflip.dev/agenda/pkg/calendar"
)

const (
	KeyBaseURL   = "base_url"
	KeyOrg       = "org"
	KeyToken     = "token"
	KeyWeekStart = "week_start"
	KeyPrefsPath = "prefs_path"
	KeyCacheSize = "cache_size"
	KeyCacheTTL  = "cache_ttl"
	KeyTimeout   = "timeout"
	KeyLogLevel  = "log_level"
	KeyLogFile   = "log_file"
	KeyRefresh   = "refresh"
)

// Config is the effective configuration.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Org       string        `yaml:"org"`
	Token     string        `yaml:"token,omitempty"`
	WeekStart time.Weekday  `yaml:"-"`
	PrefsPath string        `yaml:"prefs_path"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Timeout   time.Duration `yaml:"timeout"`
	LogLevel  string        `yaml:"log_level"`
	LogFile   string        `yaml:"log_file,omitempty"`
	Refresh   string        `yaml:"refresh"`
	File      string        `yaml:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyOrg, "")
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyWeekStart, "monday")
	v.SetDefault(KeyPrefsPath, "~/.agenda")
	v.SetDefault(KeyCacheSize, 512)
	v.SetDefault(KeyCacheTTL, "10m")
	v.SetDefault(KeyTimeout, "15s")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyRefresh, "*/5 * * * *")
}

// New returns a viper instance with the agenda defaults, search paths and
// environment binding applied, and the config file read if one exists.
func New() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName(".agenda") // .yaml is implicit
	v.SetEnvPrefix("AGENDA")
	v.AutomaticEnv()

	if override := os.Getenv("AGENDA_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return v, nil
}

// Load reads the configuration. It does not validate it; commands that talk
// to the server call Validate.
func Load() (*Config, error) {
	v, err := New()
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes v into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	prefsPath, err := homedir.Expand(v.GetString(KeyPrefsPath))
	if err != nil {
		return nil, fmt.Errorf("config: expand %s: %w", KeyPrefsPath, err)
	}
	logFile := v.GetString(KeyLogFile)
	if logFile != "" {
		if logFile, err = homedir.Expand(logFile); err != nil {
			return nil, fmt.Errorf("config: expand %s: %w", KeyLogFile, err)
		}
	}
	c := &Config{
		BaseURL:   strings.TrimSpace(v.GetString(KeyBaseURL)),
		Org:       strings.TrimSpace(v.GetString(KeyOrg)),
		Token:     v.GetString(KeyToken),
		WeekStart: calendar.ParseWeekday(v.GetString(KeyWeekStart)),
		PrefsPath: prefsPath,
		CacheSize: v.GetInt(KeyCacheSize),
		CacheTTL:  v.GetDuration(KeyCacheTTL),
		Timeout:   v.GetDuration(KeyTimeout),
		LogLevel:  v.GetString(KeyLogLevel),
		LogFile:   logFile,
		Refresh:   v.GetString(KeyRefresh),
		File:      v.ConfigFileUsed(),
	}
	return c, nil
}

// Validate reports every missing or malformed required setting.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, fmt.Errorf("config: %s is required", KeyBaseURL))
	}
	if c.Org == "" {
		errs = append(errs, fmt.Errorf("config: %s is required", KeyOrg))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("config: %s must not be negative", KeyCacheSize))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}
	return l, nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.Token != "" {
		cp.Token = "********"
	}
	return cp
}
