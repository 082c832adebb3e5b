// Package config loads sumtimer's YAML configuration and reloads it when the
// file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sadopc/sumtimer/internal/timeutil"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	KeyDataDir          = "data_dir"
	KeyUserID           = "user_id"
	KeyDayStartHour     = "day_start_hour"
	KeyWeekStart        = "week_start"
	KeyMaxPauseDuration = "max_pause_duration"
	KeyTickInterval     = "tick_interval"
	KeyLogLevel         = "log_level"
	KeyWakeLockCommand  = "wake_lock_command"
)

type Config struct {
	DataDir          string
	UserID           string
	DayStartHour     int
	WeekStart        time.Weekday
	MaxPauseDuration time.Duration
	TickInterval     time.Duration
	LogLevel         string
	// WakeLockCommand runs while a session is live; empty disables it.
	WakeLockCommand  []string
}

func (c Config) DBPath() string  { return filepath.Join(c.DataDir, "sumtimer.db") }
func (c Config) LogPath() string { return filepath.Join(c.DataDir, "sumtimer.log") }

// Calendar returns the day and week boundaries in the local zone.
func (c Config) Calendar() timeutil.Calendar {
	return timeutil.Calendar{DayStartHour: c.DayStartHour, WeekStart: c.WeekStart, Location: time.Local}
}

// DefaultPath is $XDG_CONFIG_HOME/sumtimer/sumtimer.yml.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		if runtime.GOOS == "windows" {
			configHome = filepath.Join(homeDir, "AppData", "Roaming")
		} else {
			configHome = filepath.Join(homeDir, ".config")
		}
	}
	return filepath.Join(configHome, "sumtimer", "sumtimer.yml"), nil
}

// Loader owns one viper instance bound to a config file.
type Loader struct {
	v    *viper.Viper
	path string

	mu  sync.Mutex
	cur Config
}

// Load reads path, creating it with default values when missing.
// SUMTIMER_* environment variables override file values.
func Load(path string) (*Loader, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SUMTIMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDataDir, filepath.Dir(path))
	v.SetDefault(KeyUserID, "local")
	v.SetDefault(KeyDayStartHour, 4)
	v.SetDefault(KeyWeekStart, "monday")
	v.SetDefault(KeyMaxPauseDuration, "30m")
	v.SetDefault(KeyTickInterval, "1s")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyWakeLockCommand, "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	l := &Loader{v: v, path: path}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.cur = cfg
	return l, nil
}

func (l *Loader) Path() string { return l.path }

// Config returns the last successfully decoded configuration.
func (l *Loader) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur
}

func (l *Loader) decode() (Config, error) {
	c := Config{
		DataDir:          l.v.GetString(KeyDataDir),
		UserID:           l.v.GetString(KeyUserID),
		DayStartHour:     l.v.GetInt(KeyDayStartHour),
		WeekStart:        timeutil.ParseWeekday(l.v.GetString(KeyWeekStart)),
		MaxPauseDuration: l.v.GetDuration(KeyMaxPauseDuration),
		TickInterval:     l.v.GetDuration(KeyTickInterval),
		LogLevel:         l.v.GetString(KeyLogLevel),
		WakeLockCommand:  strings.Fields(l.v.GetString(KeyWakeLockCommand)),
	}
	switch {
	case c.UserID == "":
		return c, fmt.Errorf("config: %s must not be empty", KeyUserID)
	case c.DayStartHour < 0 || c.DayStartHour > 23:
		return c, fmt.Errorf("config: %s must be within 0..23, got %d", KeyDayStartHour, c.DayStartHour)
	case c.MaxPauseDuration <= 0:
		return c, fmt.Errorf("config: %s must be positive", KeyMaxPauseDuration)
	case c.TickInterval <= 0:
		return c, fmt.Errorf("config: %s must be positive", KeyTickInterval)
	}
	return c, nil
}

// Set stores one value and writes the file back.
func (l *Loader) Set(key string, value any) error {
	prev := l.v.Get(key)
	l.v.Set(key, value)
	cfg, err := l.decode()
	if err != nil {
		l.v.Set(key, prev)
		return err
	}
	if err := l.v.WriteConfigAs(l.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	l.mu.Lock()
	l.cur = cfg
	l.mu.Unlock()
	return nil
}

// Watch calls fn with the new configuration whenever the file changes.
// Invalid edits are logged and the previous configuration stays in effect.
func (l *Loader) Watch(log *zap.Logger, fn func(Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			log.Warn("ignoring config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		l.mu.Lock()
		l.cur = cfg
		l.mu.Unlock()
		log.Info("config reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		fn(cfg)
	})
	l.v.WatchConfig()
}
