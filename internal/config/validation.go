package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"xevsource/internal/logging"
	"xevsource/internal/x11"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match any validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ErrInvalidConfig is matched by every ValidationErrors value.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig checks every section and returns ValidationErrors listing
// all problems found, or nil.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}
	errs = append(errs, validateDisplay(&c.Display)...)
	errs = append(errs, validateDevices(&c.Devices)...)
	errs = append(errs, validateJournal(&c.Journal)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDisplay(d *DisplayConfig) ValidationErrors {
	var errs ValidationErrors
	if d.Name != "" {
		if _, err := x11.ParseDisplay(d.Name); err != nil {
			errs = append(errs, ValidationError{Field: "display.name", Message: err.Error()})
		}
	}
	if d.DialTimeoutMs < 1 {
		errs = append(errs, *RangeError("display.dial_timeout_ms", 1, "unbounded"))
	}
	return errs
}

func validateDevices(d *DevicesConfig) ValidationErrors {
	var errs ValidationErrors
	if d.ProcPath == "" {
		errs = append(errs, *RequiredFieldError("devices.proc_path"))
	}
	if d.Watch && d.DevDir == "" && !d.ForcePolling {
		errs = append(errs, ValidationError{
			Field:   "devices.dev_dir",
			Message: "required when watching without force_polling",
		})
	}
	if d.SettleMs < 0 {
		errs = append(errs, ValidationError{Field: "devices.settle_ms", Message: "cannot be negative"})
	}
	if d.PollIntervalMs < 1 {
		errs = append(errs, *RangeError("devices.poll_interval_ms", 1, "unbounded"))
	}
	for _, id := range d.Blocked {
		if id < 0 || id > 0xffff {
			errs = append(errs, ValidationError{
				Field:   "devices.blocked",
				Message: fmt.Sprintf("device id %d out of range", id),
			})
		}
	}
	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	if !j.Enabled {
		return nil
	}
	var errs ValidationErrors
	if j.Path == "" {
		errs = append(errs, *RequiredFieldError("journal.path"))
	} else if !filepath.IsAbs(expandPath(j.Path)) {
		errs = append(errs, ValidationError{Field: "journal.path", Message: "must be absolute"})
	}
	if j.BatchSize < 1 {
		errs = append(errs, *RangeError("journal.batch_size", 1, "unbounded"))
	}
	if j.FlushIntervalMs < 1 {
		errs = append(errs, *RangeError("journal.flush_interval_ms", 1, "unbounded"))
	}
	if j.Buffer < j.BatchSize {
		errs = append(errs, ValidationError{
			Field:   "journal.buffer",
			Message: fmt.Sprintf("must be at least batch_size (%d)", j.BatchSize),
		})
	}
	if j.RetentionDays < 0 {
		errs = append(errs, ValidationError{Field: "journal.retention_days", Message: "cannot be negative"})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		return ValidationErrors{{Field: "metrics.addr", Message: err.Error()}}
	}
	return nil
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(l.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}
	if _, err := logging.ParseFormat(l.Format); err != nil {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output includes a file",
			})
		}
		if l.MaxSizeMB < 1 {
			errs = append(errs, ValidationError{
				Field:   "logging.max_size_mb",
				Message: "max size must be at least 1 MB",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid output: %q (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_backups", Message: "max backups cannot be negative"})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_age_days", Message: "max age cannot be negative"})
	}
	return errs
}

// expandPath resolves a leading "~/".
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "required field is missing"}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
