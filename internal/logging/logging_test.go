package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil || parsed != level {
			t.Errorf("round trip of %v gave %v, %v", level, parsed, err)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.Component != "xevsource" {
		t.Errorf("expected component xevsource, got %s", cfg.Component)
	}
	if !strings.HasSuffix(cfg.FilePath, filepath.Join("xevsource", "xevsourced.log")) {
		t.Errorf("unexpected default log path %s", cfg.FilePath)
	}
}

func TestHandlerRedactsAndTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Level: LevelDebug, Format: FormatJSON, Component: "x11"}
	logger := slog.New(NewHandler(&buf, cfg))

	logger.Debug("dial", "display", ":0", "cookie", "deadbeef", "xauth_file", "/home/u/.Xauthority")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["component"] != "x11" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["display"] != ":0" {
		t.Errorf("display = %v", rec["display"])
	}
	for _, k := range []string{"cookie", "xauth_file"} {
		if rec[k] != "[REDACTED]" {
			t.Errorf("%s was not redacted: %v", k, rec[k])
		}
	}
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &Config{Level: LevelWarn}))
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record passed a warn-level handler")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record was dropped")
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"auth_token", true},
		{"Cookie", true},
		{"xauthority", true},
		{"credential", true},
		{"session", false},
		{"key", false},
		{"display", false},
		{"window", false},
	}
	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := shouldRedact(test.key); got != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, got, test.expected)
			}
		})
	}
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "xevsourced.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.WithComponent("source").Info("started")
	if err := logger.Sync(); err != nil {
		t.Errorf("sync: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "component=source") {
		t.Errorf("log file missing component: %s", data)
	}
}

func TestSetLevelReachesComponents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path
	cfg.Level = LevelWarn

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	child := logger.WithComponent("journal")
	child.Debug("hidden")
	logger.SetLevel(LevelDebug)
	child.Debug("shown")
	if err := logger.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Errorf("debug record written before SetLevel: %s", data)
	}
	if !strings.Contains(string(data), "shown") {
		t.Errorf("debug record missing after SetLevel: %s", data)
	}
}

func TestFileRotatorRotation(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		FilePath:   filepath.Join(dir, "test.log"),
		MaxSize:    1,
		MaxAge:     7,
		MaxBackups: 1,
		Compress:   true,
	}
	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	tick := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rotator.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 3; i++ {
		if _, err := rotator.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rotated, err := rotator.Rotated()
	if err != nil {
		t.Fatalf("list rotated: %v", err)
	}
	if len(rotated) != 1 {
		t.Fatalf("expected one backup after pruning, got %v", rotated)
	}
	if !strings.HasSuffix(rotated[0], ".log.gz") {
		t.Errorf("backup was not compressed: %s", rotated[0])
	}
	info, err := os.Stat(cfg.FilePath)
	if err != nil {
		t.Fatalf("stat live log: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("live log has %d bytes, want %d", info.Size(), len(chunk))
	}
}

func TestCrashHandlerWritesReport(t *testing.T) {
	dir := t.TempDir()
	h := NewCrashHandler(dir, "1.2.3", slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Display = ":1"

	func() {
		defer h.Recover("watcher", false)
		panic("device node vanished")
	}()

	reports, err := h.Reports()
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	r := reports[0]
	if r.Task != "watcher" || r.Display != ":1" || r.Version != "1.2.3" {
		t.Errorf("unexpected report header: %+v", r)
	}
	if r.PanicValue != "device node vanished" {
		t.Errorf("panic value = %q", r.PanicValue)
	}
	if !strings.Contains(r.StackTrace, "TestCrashHandlerWritesReport") {
		t.Error("stack trace does not include the panicking test")
	}

	h.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if err := h.Prune(24 * time.Hour); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if reports, _ := h.Reports(); len(reports) != 0 {
		t.Errorf("expected pruned reports, got %d", len(reports))
	}
}

func TestCrashHandlerRepanics(t *testing.T) {
	h := NewCrashHandler(t.TempDir(), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("expected re-panic with boom, got %v", r)
		}
	}()
	defer h.Recover("follow", true)
	panic("boom")
}
