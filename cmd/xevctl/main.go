// xevctl is the control CLI for xevsourced.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"xevsource/internal/config"
	"xevsource/internal/devices"
	"xevsource/internal/journal"
	"xevsource/internal/logging"
	"xevsource/internal/source"
	"xevsource/internal/x11"
	"xevsource/internal/xevent"
)

var (
	configPath = flag.String("config", "", "path to config file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	var err error
	switch cmd {
	case "status":
		err = cmdStatus()
	case "sessions":
		err = cmdSessions()
	case "history":
		n := 20
		if flag.NArg() >= 2 {
			n, err = strconv.Atoi(flag.Arg(1))
			if err != nil || n < 1 {
				fmt.Fprintln(os.Stderr, "Usage: xevctl history [count]")
				os.Exit(1)
			}
		}
		err = cmdHistory(n)
	case "devices":
		err = cmdDevices()
	case "timestamp":
		err = cmdTimestamp()
	case "config":
		format := "toml"
		if flag.NArg() >= 2 {
			format = flag.Arg(1)
		}
		err = cmdConfig(format)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "xevctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `xevctl - Control utility for xevsourced

Usage: xevctl [options] <command> [args]

Commands:
  status            Show journal and crash report summary
  sessions          List journal sessions
  history [count]   Print the most recent journaled events (default 20)
  devices           List input devices as the daemon would see them
  timestamp         Ask the display server for its current time
  config [format]   Print the effective configuration (toml, json, yaml)
  help              Show this help message

Options:
  -config <path>  Path to config file (default: ./config.toml or ~/.config/xevsource/config.toml)`)
}

func loadConfig() (*config.Config, error) {
	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		cfg := config.DefaultConfig()
		if err := cfg.ApplyEnvOverrides(); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func openJournal() (*journal.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		return nil, fmt.Errorf("no journal at %s", cfg.Journal.Path)
	}
	return journal.Open(cfg.Journal.Path)
}

func cmdStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("=== xevsource Status ===")
	fmt.Println()
	fmt.Printf("Display:   %s\n", displayLabel(cfg.Display.Name))
	fmt.Printf("Journal:   %s\n", cfg.Journal.Path)

	if _, err := os.Stat(cfg.Journal.Path); err == nil {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		version, _ := store.SchemaVersion()
		sessions, err := store.Sessions()
		if err != nil {
			return err
		}
		var events int64
		open := 0
		for _, s := range sessions {
			events += s.Events
			if s.Open() {
				open++
			}
		}
		fmt.Printf("Schema:    v%d\n", version)
		fmt.Printf("Sessions:  %d (%d open)\n", len(sessions), open)
		fmt.Printf("Events:    %d\n", events)
	} else {
		fmt.Println("Sessions:  no journal yet")
	}

	crash := logging.NewCrashHandler(logging.DefaultCrashDir(), "", nil)
	reports, err := crash.Reports()
	if err == nil && len(reports) > 0 {
		last := reports[len(reports)-1]
		fmt.Printf("Crashes:   %d (last: %s in %s)\n", len(reports), last.Timestamp.Local().Format(time.DateTime), last.Task)
	} else {
		fmt.Println("Crashes:   none")
	}
	return nil
}

func displayLabel(name string) string {
	if name == "" {
		if env := os.Getenv("DISPLAY"); env != "" {
			return env + " (from $DISPLAY)"
		}
		return "(unset)"
	}
	return name
}

func cmdSessions() error {
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDISPLAY\tSTARTED\tENDED\tEVENTS")
	for _, s := range sessions {
		ended := "running"
		if !s.Open() {
			ended = s.EndedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Display, s.StartedAt.Local().Format(time.DateTime), ended, s.Events)
	}
	return tw.Flush()
}

func cmdHistory(n int) error {
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(n)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tSEQ\tEVENT\tWINDOW\tSERVER TIME")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%s\t0x%x\t%d\n",
			r.RecordedAt.Local().Format("15:04:05.000"), r.Sequence, r.Name, r.Window, r.ServerTime)
	}
	return tw.Flush()
}

func cmdDevices() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	devs, err := devices.ProcEnumerator{Path: cfg.Devices.ProcPath, DevDir: cfg.Devices.DevDir}.Enumerate()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tKIND\tBUS\tVENDOR:PRODUCT\tREADABLE\tNAME")
	for _, d := range devs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%04x:%04x\t%t\t%s\n",
			d.Node, d.Kind, d.Bus, d.Vendor, d.Product, d.Readable, d.Name)
	}
	return tw.Flush()
}

func cmdTimestamp() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := x11.Dial(x11.Options{Display: cfg.Display.Name, DialTimeout: cfg.DialTimeout()})
	if err != nil {
		return err
	}
	defer conn.Close()

	src, err := source.New(conn, source.Options{RTTSampleRate: 1})
	if err != nil {
		return err
	}
	defer src.Close()

	start := time.Now()
	ts := src.GetCurrentServerTime()
	rtt := time.Since(start)
	if ts == xevent.NoTimestamp {
		return fmt.Errorf("display %s did not report a server time", conn.Display().Name)
	}
	fmt.Printf("Server time: %d ms (round trip %s)\n", uint32(ts), rtt.Round(time.Microsecond))
	return nil
}

func cmdConfig(format string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg, format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
