package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/tosih/obd-ve-monitor/pkg/compare"
	"github.com/tosih/obd-ve-monitor/pkg/config"
	"github.com/tosih/obd-ve-monitor/pkg/export"
	"github.com/tosih/obd-ve-monitor/pkg/obd"
	"github.com/tosih/obd-ve-monitor/pkg/poller"
	"github.com/tosih/obd-ve-monitor/pkg/renderer"
	"github.com/tosih/obd-ve-monitor/pkg/scanner"
	"github.com/tosih/obd-ve-monitor/pkg/settings"
	"github.com/tosih/obd-ve-monitor/pkg/web"
)

func portOptions(cfg config.Config) obd.PortOptions {
	return obd.PortOptions{BaudRate: cfg.BaudRate, Timeout: cfg.QueryTimeout}
}

// adapterConnector opens the configured port for the poller's reconnects
func adapterConnector(cfg config.Config) poller.Connector {
	return func(ctx context.Context) (poller.Source, error) {
		s, err := obd.Connect(ctx, cfg.Port, portOptions(cfg))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func runMonitor(ctx context.Context, cfg config.Config, opts options) error {
	pterm.DefaultHeader.WithFullWidth().Println("OBD-II VE Monitor")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	p := poller.New(cfg, nil)
	defer p.Close()

	switch {
	case cfg.Demo:
		pterm.Info.Println("Demo mode: values are simulated")
	case cfg.Port == "":
		pterm.Warning.Println("No adapter port configured (-port or OBDVE_PORT), showing demo values")
	default:
		spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + cfg.Port + "...")
		session, err := obd.Connect(ctx, cfg.Port, portOptions(cfg))
		if err != nil {
			spinner.Warning(fmt.Sprintf("%v: showing demo values, retrying every %s", err, cfg.ReconnectInterval))
		} else {
			spinner.Success(fmt.Sprintf("Connected to %s (%s)", session.Name(), session.Version()))
			p.SetSource(session)
		}
		p.SetConnector(adapterConnector(cfg))
	}

	pterm.Info.Printf("Polling every %s, %d cylinders, O2 as %s\n", cfg.PollInterval, cfg.Cylinders, cfg.Mode())

	webErr := make(chan error, 1)
	if opts.web {
		srv := web.NewServer(p, cfg.Listen)
		go func() { webErr <- srv.Start(ctx, !opts.noBrowser) }()
	}

	live := renderer.NewLive(p, opts.display)
	p.AddObserver(live)
	if err := live.Start(); err != nil {
		pterm.Warning.Printf("Live view unavailable: %v\n", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	var err error
	select {
	case err = <-runErr:
	case err = <-webErr:
		if err != nil {
			err = fmt.Errorf("dashboard: %w", err)
			cancel()
		}
		err = errors.Join(err, <-runErr)
	}
	live.Stop()

	pterm.Println()
	renderer.RenderTable(p.Table(), p.Config().Cylinders, opts.display)
	pterm.Info.Printf("%d samples logged\n", p.LogLen())

	if opts.exportDir != "" {
		if _, exportErr := export.ExportSession(p, opts.exportDir); exportErr != nil {
			err = errors.Join(err, exportErr)
		}
	} else if p.LogLen() > 0 {
		pterm.Info.Println("Run with -export <dir> to save the log and VE table")
	}
	return err
}

// withAdapter connects to the configured port, runs fn and disconnects
func withAdapter(ctx context.Context, cfg config.Config, fn func(context.Context, *obd.Session) error) error {
	if cfg.Port == "" {
		return errors.New("no adapter port configured: use -port or OBDVE_PORT")
	}

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + cfg.Port + "...")
	session, err := obd.Connect(ctx, cfg.Port, portOptions(cfg))
	if err != nil {
		spinner.Fail("Connection failed")
		return err
	}
	spinner.Success(fmt.Sprintf("Connected to %s (%s)", session.Name(), session.Version()))
	defer session.Close()

	return fn(ctx, session)
}

func listPIDs(ctx context.Context, s *obd.Session) error {
	pids, err := s.SupportedPIDs(ctx)
	if err != nil {
		return err
	}
	pterm.Info.Printf("Vehicle reports %d supported PID(s)\n", len(pids))
	renderer.ListParams(s.Supports)
	return nil
}

func readDTCs(ctx context.Context, s *obd.Session) error {
	status, err := s.MILStatus(ctx)
	if err != nil {
		return err
	}
	if status.On {
		pterm.Warning.Printf("Check engine light is ON, %d code(s) stored\n", status.DTCCount)
	} else {
		pterm.Success.Printf("Check engine light is off, %d code(s) stored\n", status.DTCCount)
	}

	codes, err := s.ReadDTCs(ctx)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		pterm.Success.Println("No trouble codes stored")
		return nil
	}

	data := pterm.TableData{{"Code", "Description"}}
	for _, c := range codes {
		data = append(data, []string{c.Code, c.Description})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func clearDTCs(ctx context.Context, s *obd.Session) error {
	pterm.Warning.Println("Clearing codes also resets the readiness monitors.")
	ok, _ := pterm.DefaultInteractiveConfirm.Show("Clear all stored trouble codes?")
	if !ok {
		pterm.Info.Println("Cancelled.")
		return nil
	}
	if err := s.ClearDTCs(ctx); err != nil {
		return err
	}
	pterm.Success.Println("Trouble codes cleared")
	return nil
}

func runScan(ctx context.Context, cfg config.Config, probe bool) error {
	var prober scanner.Prober
	if probe {
		prober = func(ctx context.Context, name string) (string, error) {
			s, err := obd.Connect(ctx, name, portOptions(cfg))
			if err != nil {
				return "", err
			}
			defer s.Close()
			return s.Version(), nil
		}
	}
	return scanner.ScanPorts(ctx, prober)
}

func runCompare(file1, file2 string, cylinders int) error {
	return compare.CompareFiles(file1, file2, cylinders)
}

func runSettings(cfg config.Config, configPath string) error {
	return settings.Interactive(settings.NewFile(cfg), configPath)
}
