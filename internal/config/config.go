// Package config loads the xevsourced configuration from TOML, JSON or YAML,
// layers XEVSOURCE_* environment overrides on top, and validates the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"xevsource/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// EnvPrefix prefixes every environment override.
const EnvPrefix = "XEVSOURCE_"

// Config holds the complete daemon configuration.
type Config struct {
	Version int `toml:"version" json:"version" yaml:"version"`

	Display DisplayConfig `toml:"display" json:"display" yaml:"display" envPrefix:"DISPLAY_"`
	Source  SourceConfig  `toml:"source" json:"source" yaml:"source" envPrefix:"SOURCE_"`
	Devices DevicesConfig `toml:"devices" json:"devices" yaml:"devices" envPrefix:"DEVICES_"`
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal" envPrefix:"JOURNAL_"`
	Bus     BusConfig     `toml:"bus" json:"bus" yaml:"bus" envPrefix:"BUS_"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics" envPrefix:"METRICS_"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging" envPrefix:"LOG_"`
}

// DisplayConfig selects the X server.
type DisplayConfig struct {
	// Name is an X display name such as ":0"; empty means $DISPLAY.
	Name string `toml:"name" json:"name" yaml:"name" env:"NAME"`

	DialTimeoutMs int `toml:"dial_timeout_ms" json:"dial_timeout_ms" yaml:"dial_timeout_ms" env:"DIAL_TIMEOUT_MS"`
}

// SourceConfig tunes the event source.
type SourceConfig struct {
	// RTTSampleRate times one in this many timestamp round trips; a
	// negative value disables timing.
	RTTSampleRate int `toml:"rtt_sample_rate" json:"rtt_sample_rate" yaml:"rtt_sample_rate" env:"RTT_SAMPLE_RATE"`

	IgnoreNativeMouse bool `toml:"ignore_native_mouse" json:"ignore_native_mouse" yaml:"ignore_native_mouse" env:"IGNORE_NATIVE_MOUSE"`

	// LogEvents logs every platform event at debug level.
	LogEvents bool `toml:"log_events" json:"log_events" yaml:"log_events" env:"LOG_EVENTS"`
}

// DevicesConfig configures input device enumeration and hotplug.
type DevicesConfig struct {
	ProcPath string `toml:"proc_path" json:"proc_path" yaml:"proc_path" env:"PROC_PATH"`
	DevDir   string `toml:"dev_dir" json:"dev_dir" yaml:"dev_dir" env:"DEV_DIR"`

	// Watch enables the /dev/input watcher; without it the device list is
	// only refreshed by XInput hierarchy events.
	Watch          bool `toml:"watch" json:"watch" yaml:"watch" env:"WATCH"`
	ForcePolling   bool `toml:"force_polling" json:"force_polling" yaml:"force_polling" env:"FORCE_POLLING"`
	SettleMs       int  `toml:"settle_ms" json:"settle_ms" yaml:"settle_ms" env:"SETTLE_MS"`
	PollIntervalMs int  `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms" env:"POLL_INTERVAL_MS"`

	IgnoreEmulatedPointer bool `toml:"ignore_emulated_pointer" json:"ignore_emulated_pointer" yaml:"ignore_emulated_pointer" env:"IGNORE_EMULATED_POINTER"`

	// Blocked lists XInput device ids whose events are dropped.
	Blocked []int `toml:"blocked" json:"blocked,omitempty" yaml:"blocked" env:"BLOCKED" envSeparator:","`
}

// JournalConfig configures the SQLite event journal.
type JournalConfig struct {
	Enabled         bool   `toml:"enabled" json:"enabled" yaml:"enabled" env:"ENABLED"`
	Path            string `toml:"path" json:"path" yaml:"path" env:"PATH"`
	BatchSize       int    `toml:"batch_size" json:"batch_size" yaml:"batch_size" env:"BATCH_SIZE"`
	FlushIntervalMs int    `toml:"flush_interval_ms" json:"flush_interval_ms" yaml:"flush_interval_ms" env:"FLUSH_INTERVAL_MS"`
	Buffer          int    `toml:"buffer" json:"buffer" yaml:"buffer" env:"BUFFER"`

	// RetentionDays prunes older records at startup; 0 keeps everything.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days" env:"RETENTION_DAYS"`
}

// BusConfig controls the D-Bus device change notifier.
type BusConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled" env:"ENABLED"`
}

// MetricsConfig controls the metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled" env:"ENABLED"`
	Addr    string `toml:"addr" json:"addr" yaml:"addr" env:"ADDR"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level" yaml:"level" env:"LEVEL"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format" env:"FORMAT"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output" env:"OUTPUT"`

	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path" env:"FILE"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress" env:"COMPRESS"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Version: Version,
		Display: DisplayConfig{
			DialTimeoutMs: 5000,
		},
		Source: SourceConfig{
			RTTSampleRate: 1000,
		},
		Devices: DevicesConfig{
			ProcPath:       "/proc/bus/input/devices",
			DevDir:         "/dev/input",
			Watch:          true,
			SettleMs:       100,
			PollIntervalMs: 2000,
		},
		Journal: JournalConfig{
			Enabled:         true,
			Path:            filepath.Join(dataDir, "journal.db"),
			BatchSize:       64,
			FlushIntervalMs: 500,
			Buffer:          1024,
			RetentionDays:   7,
		},
		Bus: BusConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9470",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   logging.DefaultLogPath(),
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// Load reads the configuration at path, or ConfigPath when path is empty.
// A missing file yields the defaults. Environment overrides are applied and
// the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides overwrites fields whose XEVSOURCE_* variable is set.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories for the journal and log file.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Devices.Blocked = append([]int(nil), c.Devices.Blocked...)
	return &clone
}

// DialTimeout returns the display dial timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Display.DialTimeoutMs) * time.Millisecond
}

// LoggerConfig converts the logging section for logging.New.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	out := logging.DefaultConfig()
	out.Level = level
	out.Format = format
	out.Output = c.Logging.Output
	out.FilePath = c.Logging.FilePath
	out.MaxSize = int64(c.Logging.MaxSizeMB)
	out.MaxBackups = c.Logging.MaxBackups
	out.MaxAge = c.Logging.MaxAgeDays
	out.Compress = c.Logging.Compress
	return out, nil
}
