package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/tosih/obd-ve-monitor/pkg/config"
	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/renderer"
)

type options struct {
	configPath string
	duration   time.Duration
	exportDir  string
	web        bool
	noBrowser  bool
	display    string

	scan     bool
	probe    bool
	pids     bool
	dtc      bool
	clearDTC bool
	compare  bool
	settings bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Config file (default: obdve.yaml in ., ./config or $HOME/.obdve)")
	port := flag.String("port", "", "Adapter serial port, e.g. /dev/rfcomm0 or COM5")
	baud := flag.Int("baud", 0, "Adapter baud rate")
	demoMode := flag.Bool("demo", false, "Use simulated values instead of an adapter")
	cylinders := flag.Int("cylinders", 0, "Engine cylinder count")
	interval := flag.Duration("interval", 0, "Poll interval, e.g. 500ms")
	o2 := flag.String("o2", "", "O2 display mode: lambda, equivalence or voltage")
	listen := flag.String("listen", "", "Dashboard listen address, e.g. localhost:8080")
	debug := flag.Bool("debug", false, "Show debug messages")
	flag.DurationVar(&opts.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	flag.StringVar(&opts.exportDir, "export", "", "Export the session to this directory on exit")
	flag.BoolVar(&opts.web, "web", false, "Serve the web dashboard")
	flag.BoolVar(&opts.noBrowser, "no-browser", false, "Do not open the dashboard in a browser")
	flag.StringVar(&opts.display, "display", renderer.ModeValues, "VE table display: values, symbols or heatmap")
	flag.BoolVar(&opts.scan, "scan", false, "List serial ports and flag likely adapters")
	flag.BoolVar(&opts.probe, "probe", false, "With -scan, try to open every candidate port")
	flag.BoolVar(&opts.pids, "pids", false, "List the PIDs the vehicle supports")
	flag.BoolVar(&opts.dtc, "dtc", false, "Read diagnostic trouble codes and MIL status")
	flag.BoolVar(&opts.clearDTC, "clear-dtc", false, "Clear diagnostic trouble codes")
	flag.BoolVar(&opts.compare, "compare", false, "Compare two VE table CSVs: -compare a.csv b.csv")
	flag.BoolVar(&opts.settings, "settings", false, "Edit settings interactively")
	flag.Parse()

	cfg, used, err := config.Load(opts.configPath)
	if err != nil {
		pterm.Error.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// flags override the file and environment only when given
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "baud":
			cfg.BaudRate = *baud
		case "demo":
			cfg.Demo = *demoMode
		case "cylinders":
			cfg.Cylinders = *cylinders
		case "interval":
			cfg.PollInterval = *interval
		case "o2":
			cfg.O2Mode = *o2
		case "listen":
			cfg.Listen = *listen
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := cfg.Validate(); err != nil {
		pterm.Error.Printf("Invalid settings: %v\n", err)
		os.Exit(1)
	}

	if cfg.Debug {
		pterm.EnableDebugMessages()
	}
	if used != "" {
		pterm.Debug.Printf("Using config file %s\n", used)
	}
	if opts.configPath == "" {
		opts.configPath = used
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, flag.Args()); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, args []string) error {
	switch {
	case opts.scan:
		return runScan(ctx, cfg, opts.probe)
	case opts.pids:
		return withAdapter(ctx, cfg, listPIDs)
	case opts.dtc:
		return withAdapter(ctx, cfg, readDTCs)
	case opts.clearDTC:
		return withAdapter(ctx, cfg, clearDTCs)
	case opts.compare:
		if len(args) != 2 {
			return errors.New("usage: obdve -compare <first.csv> <second.csv>")
		}
		return runCompare(args[0], args[1], cfg.Cylinders)
	case opts.settings:
		return runSettings(cfg, opts.configPath)
	}

	switch opts.display {
	case renderer.ModeValues, renderer.ModeSymbols, renderer.ModeHeatmap:
	default:
		return fmt.Errorf("unknown display mode %q: expected values, symbols or heatmap", opts.display)
	}
	if _, err := models.ParseO2Mode(cfg.O2Mode); err != nil {
		return err
	}
	return runMonitor(ctx, cfg, opts)
}
