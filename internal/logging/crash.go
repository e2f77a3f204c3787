package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"time"
)

// CrashReport is written for every panic caught by a CrashHandler.
type CrashReport struct {
	Timestamp    time.Time         `json:"timestamp"`
	Version      string            `json:"version,omitempty"`
	GOOS         string            `json:"goos"`
	GOARCH       string            `json:"goarch"`
	NumGoroutine int               `json:"num_goroutine"`
	Task         string            `json:"task"`
	Display      string            `json:"display,omitempty"`
	PanicValue   string            `json:"panic_value"`
	StackTrace   string            `json:"stack_trace"`
	Context      map[string]string `json:"context,omitempty"`
}

// CrashHandler records panics in the daemon's background tasks (device
// watcher, hotplug follower, metrics server) to JSON files before the
// process dies. Dispatch panics never reach it; the event source recovers
// those itself.
type CrashHandler struct {
	Dir     string
	Version string
	Display string
	Logger  *slog.Logger
	now     func() time.Time
}

// DefaultCrashDir returns $XDG_STATE_HOME/xevsource/crashes.
func DefaultCrashDir() string {
	return filepath.Join(filepath.Dir(DefaultLogPath()), "crashes")
}

// NewCrashHandler creates a handler writing under dir (DefaultCrashDir when
// empty).
func NewCrashHandler(dir, version string, logger *slog.Logger) *CrashHandler {
	if dir == "" {
		dir = DefaultCrashDir()
	}
	if logger == nil {
		logger = Default().WithComponent("crash").Logger
	}
	return &CrashHandler{Dir: dir, Version: version, Logger: logger, now: time.Now}
}

// Go runs fn on a new goroutine. A panic in fn is reported and then
// re-raised so the process still exits.
func (h *CrashHandler) Go(task string, fn func()) {
	go func() {
		defer h.Recover(task, true)
		fn()
	}()
}

// Recover must be deferred. It reports a panic and re-panics when repanic
// is set.
func (h *CrashHandler) Recover(task string, repanic bool) {
	r := recover()
	if r == nil {
		return
	}
	report := h.Report(task, r, nil)
	path, err := h.write(report)
	if err != nil {
		h.Logger.Error("task panicked", "task", task, "panic", report.PanicValue, "write_error", err)
	} else {
		h.Logger.Error("task panicked", "task", task, "panic", report.PanicValue, "report", path)
	}
	if repanic {
		panic(r)
	}
}

// Report builds a CrashReport for a recovered value.
func (h *CrashHandler) Report(task string, value any, ctx map[string]string) CrashReport {
	return CrashReport{
		Timestamp:    h.now().UTC(),
		Version:      h.Version,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		Task:         task,
		Display:      h.Display,
		PanicValue:   fmt.Sprint(value),
		StackTrace:   string(debug.Stack()),
		Context:      ctx,
	}
}

func (h *CrashHandler) write(report CrashReport) (string, error) {
	if err := os.MkdirAll(h.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	name := fmt.Sprintf("crash-%s-%s.json", report.Task, report.Timestamp.Format("20060102-150405.000000"))
	path := filepath.Join(h.Dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports reads the stored reports, oldest first. Unreadable files are
// skipped.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	files, err := filepath.Glob(filepath.Join(h.Dir, "crash-*.json"))
	if err != nil {
		return nil, err
	}
	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Timestamp.Before(reports[j].Timestamp) })
	return reports, nil
}

// Prune removes reports older than maxAge.
func (h *CrashHandler) Prune(maxAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(h.Dir, "crash-*.json"))
	if err != nil {
		return err
	}
	cutoff := h.now().Add(-maxAge)
	for _, file := range files {
		if info, err := os.Stat(file); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
	return nil
}
