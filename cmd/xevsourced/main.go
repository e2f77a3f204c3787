// xevsourced drains an X11 display connection and dispatches its events.
//
// It watches input device hotplug, journals routed events to SQLite,
// announces device changes on the session bus and serves Prometheus
// metrics, each as configured.
//
//	xevsourced [-config path] [-display :0] [-metrics-addr host:port]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"xevsource/internal/config"
	"xevsource/internal/logging"
)

var version = "dev"

var (
	configPath  = flag.String("config", "", "path to config file (default: search ./ and $XDG_CONFIG_HOME/xevsource)")
	displayName = flag.String("display", "", "X display to connect to (overrides config and $DISPLAY)")
	metricsAddr = flag.String("metrics-addr", "", "serve metrics on this address (overrides config)")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println("xevsourced", version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "xevsourced: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `xevsourced - X11 platform event source daemon

Usage: xevsourced [options]

Options:`)
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, `
Environment:
  XEVSOURCE_*     override config keys, e.g. XEVSOURCE_LOG_LEVEL=debug
  DISPLAY         display used when neither -display nor display.name is set`)
}

func run() error {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)
	if created {
		logger.Info("wrote default configuration", "path", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}

	loader := config.NewLoader(path, logger.WithComponent("config").Logger)
	if _, err := loader.Load(); err == nil {
		loader.OnChange(d.reload)
		if err := loader.Watch(); err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-loader.Errors():
					logger.Warn("config reload failed", "error", err)
				}
			}
		}()
	}
	defer loader.Close()

	err = d.run(ctx)
	if cerr := d.Close(); cerr != nil {
		logger.Error("shutdown", "error", cerr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyFlags lets command-line flags win over file and environment.
func applyFlags(cfg *config.Config) {
	if *displayName != "" {
		cfg.Display.Name = *displayName
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *metricsAddr
	}
}
