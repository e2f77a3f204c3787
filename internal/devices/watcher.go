package devices

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"xevsource/internal/logging"
	"xevsource/internal/source"
)

// Watcher defaults.
const (
	DefaultSettle       = 100 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Dir          string
	Settle       time.Duration
	PollInterval time.Duration
	// Enumerator is used by the polling fallback to detect changes.
	Enumerator Enumerator
	// ForcePolling skips fsnotify.
	ForcePolling bool
	Logger       *slog.Logger
}

// Watcher signals when evdev nodes appear or disappear. Bursts of
// filesystem events are coalesced: at most one signal is pending at a time.
type Watcher struct {
	opts    WatcherOptions
	logger  *slog.Logger
	changes chan struct{}
	polling atomic.Bool
}

// NewWatcher creates a watcher. Call Run to start it.
func NewWatcher(opts WatcherOptions) *Watcher {
	if opts.Dir == "" {
		opts.Dir = DefaultDevDir
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Enumerator == nil {
		opts.Enumerator = ProcEnumerator{DevDir: opts.Dir}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default().WithComponent("devwatch").Logger
	}
	return &Watcher{
		opts:    opts,
		logger:  opts.Logger,
		changes: make(chan struct{}, 1),
	}
}

// Changes delivers a value after the device set may have changed.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Polling reports whether Run fell back to polling. Valid once Run started.
func (w *Watcher) Polling() bool { return w.polling.Load() }

func (w *Watcher) signal() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Run watches until ctx is done. When the directory cannot be watched it
// polls the enumerator instead.
func (w *Watcher) Run(ctx context.Context) error {
	if w.opts.ForcePolling {
		w.polling.Store(true)
		return w.poll(ctx)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("fsnotify unavailable, polling for devices", "error", err)
		w.polling.Store(true)
		return w.poll(ctx)
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		w.logger.Warn("cannot watch device directory, polling", "dir", w.opts.Dir, "error", err)
		w.polling.Store(true)
		return w.poll(ctx)
	}
	w.logger.Debug("watching device directory", "dir", w.opts.Dir)

	settle := time.NewTimer(w.opts.Settle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), "event") {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			// Wait for udev to finish setting up the node.
			settle.Reset(w.opts.Settle)
		case <-settle.C:
			w.signal()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Debug("device watch error", "error", err)
		}
	}
}

func (w *Watcher) snapshot() []string {
	devs, err := w.opts.Enumerator.Enumerate()
	if err != nil {
		w.logger.Debug("poll enumeration failed", "error", err)
		return nil
	}
	keys := make([]string, 0, len(devs))
	for _, d := range devs {
		keys = append(keys, d.Key())
	}
	slices.Sort(keys)
	return keys
}

func (w *Watcher) poll(ctx context.Context) error {
	known := w.snapshot()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			next := w.snapshot()
			if next == nil {
				continue
			}
			if !slices.Equal(known, next) {
				known = next
				w.signal()
			}
		}
	}
}

// Follow refreshes mgr and notifies h for every signal on changes until ctx
// is done.
func Follow(ctx context.Context, changes <-chan struct{}, mgr *Manager, h source.HotplugHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			mgr.UpdateDeviceList()
			h.OnHotplugEvent()
		}
	}
}
