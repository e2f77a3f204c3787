package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"xevsource/internal/busnotify"
	"xevsource/internal/config"
	"xevsource/internal/devices"
	"xevsource/internal/health"
	"xevsource/internal/journal"
	"xevsource/internal/logging"
	"xevsource/internal/metrics"
	"xevsource/internal/source"
	"xevsource/internal/x11"
)

const statsInterval = 10 * time.Second

// daemon owns every component for one display connection.
type daemon struct {
	cfg    *config.Config
	logger *logging.Logger
	crash  *logging.CrashHandler

	registry *metrics.Registry
	health   *health.Checker
	conn     *x11.Conn
	src      *source.EventSource
	mgr      *devices.Manager
	hotplug  *devices.HotplugHandler
	watcher  *devices.Watcher
	store    *journal.Store
	recorder *journal.Recorder
	bus      *busnotify.Notifier
	events   *eventLogger
	http     *http.Server
}

func newDaemon(cfg *config.Config, logger *logging.Logger) (d *daemon, err error) {
	d = &daemon{
		cfg:      cfg,
		logger:   logger,
		registry: metrics.NewRegistry("xevsource", ""),
		health:   health.NewChecker(),
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	d.crash = logging.NewCrashHandler(logging.DefaultCrashDir(), version, logger.WithComponent("crash").Logger)

	d.conn, err = x11.Dial(x11.Options{
		Display:     cfg.Display.Name,
		DialTimeout: cfg.DialTimeout(),
		Logger:      logger.WithComponent("x11").Logger,
	})
	if err != nil {
		return nil, err
	}
	display := d.conn.Display().Name
	d.crash.Display = display
	d.health.RegisterFunc("display", true, health.ConnectionCheck(d.conn.Closed))
	logger.Info("connected to display", "display", display)

	enum := devices.ProcEnumerator{Path: cfg.Devices.ProcPath, DevDir: cfg.Devices.DevDir}
	d.mgr = devices.NewManager(devices.ManagerOptions{
		Enumerator:            enum,
		IgnoreEmulatedPointer: cfg.Devices.IgnoreEmulatedPointer,
		Blocked:               cfg.Devices.Blocked,
		Logger:                logger.WithComponent("devices").Logger,
	})
	d.hotplug = devices.NewHotplugHandler(d.mgr, logger.WithComponent("hotplug").Logger)
	d.hotplug.AddListener(d.deviceMetrics())

	if cfg.Devices.Watch {
		d.watcher = devices.NewWatcher(devices.WatcherOptions{
			Dir:          cfg.Devices.DevDir,
			Settle:       time.Duration(cfg.Devices.SettleMs) * time.Millisecond,
			PollInterval: time.Duration(cfg.Devices.PollIntervalMs) * time.Millisecond,
			Enumerator:   enum,
			ForcePolling: cfg.Devices.ForcePolling,
			Logger:       logger.WithComponent("devwatch").Logger,
		})
		d.health.RegisterFunc("device_watcher", false, func(context.Context) health.CheckResult {
			if d.watcher.Polling() {
				return health.Degraded("polling " + cfg.Devices.ProcPath)
			}
			return health.Healthy("watching " + cfg.Devices.DevDir)
		})
	}

	if cfg.Bus.Enabled {
		bus, err := busnotify.Connect(logger.WithComponent("bus").Logger)
		if err != nil {
			// The session bus is optional; a headless host has none.
			logger.Warn("session bus notifications disabled", "error", err)
		} else {
			d.bus = bus
			d.hotplug.AddListener(bus)
		}
	}

	d.src, err = source.New(d.conn, source.Options{
		Devices:       d.mgr,
		Hotplug:       d.hotplug,
		Logger:        logger.WithComponent("source").Logger,
		Metrics:       d.registry,
		RTTSampleRate: cfg.Source.RTTSampleRate,
	})
	if err != nil {
		return nil, err
	}
	d.src.SetIgnoreNativeMouseEvents(cfg.Source.IgnoreNativeMouse)

	d.events = newEventLogger(logger.WithComponent("events").Logger, d.registry, cfg.Source.LogEvents)
	if err := d.src.AddPlatformDispatcher(d.events); err != nil {
		return nil, err
	}

	if cfg.Journal.Enabled {
		if err := d.openJournal(display); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *daemon) openJournal(display string) error {
	store, err := journal.Open(d.cfg.Journal.Path)
	if err != nil {
		return err
	}
	d.store = store

	if days := d.cfg.Journal.RetentionDays; days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		n, err := store.Prune(cutoff)
		if err != nil {
			d.logger.Warn("journal prune failed", "error", err)
		} else if n > 0 {
			d.logger.Info("pruned journal records", "records", n, "before", cutoff.Format(time.DateOnly))
		}
	}

	rec, err := journal.NewRecorder(store, display, journal.RecorderOptions{
		BatchSize:     d.cfg.Journal.BatchSize,
		FlushInterval: time.Duration(d.cfg.Journal.FlushIntervalMs) * time.Millisecond,
		Buffer:        d.cfg.Journal.Buffer,
		Logger:        d.logger.WithComponent("journal").Logger,
	})
	if err != nil {
		return err
	}
	d.recorder = rec
	if err := d.src.AddObserver(rec); err != nil {
		return err
	}
	d.health.RegisterFunc("journal", false, health.PingCheck(store.Ping))
	d.health.RegisterFunc("journal_backlog", false, health.CounterCheck("dropped", rec.Dropped))
	d.logger.Info("journal recording", "path", d.cfg.Journal.Path, "session", rec.Session().ID)
	return nil
}

// deviceMetrics mirrors hotplug changes into the registry.
func (d *daemon) deviceMetrics() devices.Listener {
	total := d.registry.Gauge("input_devices", "Readable evdev input devices", nil)
	return devices.ListenerFunc(func(c devices.Change) {
		total.Set(int64(c.Total))
		for _, dev := range c.Added {
			d.registry.Counter("input_devices_added_total", "Input devices that appeared",
				metrics.Labels{"bus": dev.Bus.String()}).Inc()
		}
		for _, dev := range c.Removed {
			d.registry.Counter("input_devices_removed_total", "Input devices that disappeared",
				metrics.Labels{"bus": dev.Bus.String()}).Inc()
		}
	})
}

// run blocks until ctx is done or the display connection fails.
func (d *daemon) run(ctx context.Context) error {
	if d.watcher != nil {
		d.crash.Go("device-watcher", func() {
			if err := d.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("device watcher stopped", "error", err)
			}
		})
		d.crash.Go("device-follow", func() {
			devices.Follow(ctx, d.watcher.Changes(), d.mgr, d.hotplug)
		})
	}

	if d.cfg.Metrics.Enabled {
		if err := d.serveMetrics(); err != nil {
			return err
		}
	}
	if d.recorder != nil {
		d.crash.Go("journal-stats", func() { d.journalStats(ctx) })
	}

	// Run only returns from WaitForEvent once the connection is closed.
	go func() {
		<-ctx.Done()
		d.conn.Close()
	}()

	d.logger.Info("dispatching events", "version", version)
	d.health.SetReady(true)
	defer d.health.SetReady(false)
	if err := d.src.Run(ctx); err != nil {
		return fmt.Errorf("event source: %w", err)
	}
	return ctx.Err()
}

func (d *daemon) serveMetrics() error {
	ln, err := net.Listen("tcp", d.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.registry.HTTPHandler())
	mux.Handle("/healthz", d.health.HealthHandler())
	mux.Handle("/readyz", d.health.ReadinessHandler())
	d.http = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	d.crash.Go("metrics-http", func() {
		if err := d.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("metrics server stopped", "error", err)
		}
	})
	d.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func (d *daemon) journalStats(ctx context.Context) {
	written := d.registry.Gauge("journal_records_written", "Records written to the journal this session", nil)
	dropped := d.registry.Gauge("journal_records_dropped", "Records dropped because the journal buffer was full", nil)
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			written.Set(int64(d.recorder.Written()))
			n := d.recorder.Dropped()
			dropped.Set(int64(n))
			if n > lastDropped {
				d.logger.Warn("journal dropping records", "dropped", n-lastDropped)
				lastDropped = n
			}
		}
	}
}

// reload applies the settings that can change without reconnecting.
func (d *daemon) reload(old, cfg *config.Config) {
	if old == nil {
		return
	}
	if old.Logging.Level != cfg.Logging.Level {
		if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
			d.logger.SetLevel(level)
			d.logger.Info("log level changed", "level", cfg.Logging.Level)
		}
	}
	for _, id := range old.Devices.Blocked {
		if !slices.Contains(cfg.Devices.Blocked, id) {
			d.mgr.Unblock(uint16(id))
		}
	}
	for _, id := range cfg.Devices.Blocked {
		d.mgr.Block(uint16(id))
	}
	d.events.setEnabled(cfg.Source.LogEvents)

	if restartNeeded(old, cfg) {
		d.logger.Warn("some configuration changes take effect after restart")
	}
}

func restartNeeded(old, cfg *config.Config) bool {
	return old.Display != cfg.Display ||
		old.Journal != cfg.Journal ||
		old.Bus != cfg.Bus ||
		old.Metrics != cfg.Metrics ||
		old.Source.RTTSampleRate != cfg.Source.RTTSampleRate ||
		old.Source.IgnoreNativeMouse != cfg.Source.IgnoreNativeMouse
}

// Close releases everything newDaemon acquired. The marker window dies
// with the connection. It must not run concurrently with run.
func (d *daemon) Close() error {
	var errs []error
	if d.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, d.http.Shutdown(ctx))
		cancel()
	}
	if d.conn != nil {
		errs = append(errs, d.conn.Close())
	}
	if d.recorder != nil {
		// A closed recorder must not see another event.
		if d.src != nil {
			if err := d.src.RemoveObserver(d.recorder); err != nil && !errors.Is(err, source.ErrNotRegistered) {
				errs = append(errs, err)
			}
		}
		if err := d.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recorder: %w", err))
		}
		d.logger.Info("journal session closed",
			"session", d.recorder.Session().ID,
			"written", d.recorder.Written(),
			"dropped", d.recorder.Dropped())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	if d.bus != nil {
		errs = append(errs, d.bus.Close())
	}
	return errors.Join(errs...)
}

var _ devices.Listener = (*busnotify.Notifier)(nil)
