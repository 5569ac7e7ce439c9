package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings are runtime knobs read from flags, FLOWRS_* variables and
// defaults, in that order of precedence.
type Settings struct {
	TickInterval   time.Duration `mapstructure:"tick_interval"`
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	LogCacheDays   int           `mapstructure:"log_cache_days"`
	Debug          bool          `mapstructure:"debug"`
}

// DefaultSettings returns the built-in values.
func DefaultSettings() Settings {
	return Settings{
		TickInterval:   200 * time.Millisecond,
		QueueCapacity:  0,
		RequestTimeout: 10 * time.Second,
		LogLevel:       "info",
		LogCacheDays:   7,
	}
}

// NewViper returns a viper instance with defaults set and FLOWRS_ env
// binding. Flags from fs are bound by name with dashes as underscores.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	def := DefaultSettings()
	v.SetDefault("tick_interval", def.TickInterval)
	v.SetDefault("queue_capacity", def.QueueCapacity)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_cache_days", def.LogCacheDays)
	v.SetDefault("debug", def.Debug)

	v.SetEnvPrefix("FLOWRS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// FLOWRS_LOG turns on the debug log file.
	if err := v.BindEnv("debug", "FLOWRS_DEBUG", "FLOWRS_LOG"); err != nil {
		return nil, err
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("binding flags: %w", bindErr)
		}
	}
	return v, nil
}

// LoadSettings decodes and validates the settings held by v.
func LoadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects values the application cannot run with.
func (s Settings) Validate() error {
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", s.TickInterval)
	}
	if s.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must not be negative, got %d", s.QueueCapacity)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", s.RequestTimeout)
	}
	if s.LogCacheDays < 0 {
		return fmt.Errorf("log_cache_days must not be negative, got %d", s.LogCacheDays)
	}
	return nil
}

// LogCacheTTL is how long cached logs are kept; zero disables the cache.
func (s Settings) LogCacheTTL() time.Duration {
	return time.Duration(s.LogCacheDays) * 24 * time.Hour
}
