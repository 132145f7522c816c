// Package poller drives the acquisition pipeline: every tick it reads all
// parameters, derives VE, updates the table and appends to the log.
package poller

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/tosih/obd-ve-monitor/pkg/clock"
	"github.com/tosih/obd-ve-monitor/pkg/config"
	"github.com/tosih/obd-ve-monitor/pkg/demo"
	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/samplelog"
	"github.com/tosih/obd-ve-monitor/pkg/table"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

// Source answers parameter queries; an adapter session or the simulator
type Source interface {
	Query(ctx context.Context, id models.ParamID) (float64, error)
	Connected() bool
	Close() error
}

// Connector opens a new adapter source
type Connector func(ctx context.Context) (Source, error)

// Observer is notified after every tick. Calls happen on the polling
// goroutine without the poller's lock held.
type Observer interface {
	OnTick(Result)
	OnConnectionError(error)
}

// Result is everything derived from one sample
type Result struct {
	Sample      models.Sample
	VE          ve.Reading
	Cell        table.Cell
	CellUpdated bool
	Errors      map[models.ParamID]error
}

// Process runs the derivation for one sample: VE, table update and log
// append. It holds no state of its own.
func Process(cfg config.Config, s models.Sample, t *table.Table, l *samplelog.Log) Result {
	res := Result{Sample: s, VE: ve.FromSample(s, cfg.Cylinders)}

	l.Append(s, res.VE)

	if res.VE.OK {
		rpm, _ := s.Get(models.ParamRPM)
		mapKPa, _ := s.Get(models.ParamMAP)
		res.Cell = t.Update(rpm, mapKPa, res.VE.Value, cfg.Cylinders, s.Time)
		res.CellUpdated = true
	}
	return res
}

// Poller owns the table, the log and the recent history of one session
type Poller struct {
	clock   clock.Clock
	demo    *demo.Source
	connect Connector

	mu          sync.Mutex
	cfg         config.Config
	source      Source
	table       *table.Table
	log         *samplelog.Log
	history     []Result
	latest      *Result
	lastAttempt time.Time
	observers   []Observer
}

// New creates a poller with an empty table and log
func New(cfg config.Config, clk clock.Clock) *Poller {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Poller{
		clock: clk,
		demo:  demo.New(cfg.DemoSeed),
		cfg:   cfg,
		table: table.New(cfg.RPMAxis, cfg.MAPAxis),
		log:   samplelog.New(clk.Now()),
	}
}

// SetSource installs a connected adapter source
func (p *Poller) SetSource(src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = src
}

// SetConnector enables reconnection attempts while no source is connected
func (p *Poller) SetConnector(c Connector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connect = c
}

// AddObserver registers o for tick and connection notifications
func (p *Poller) AddObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Run ticks at the poll interval until ctx is cancelled
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.Config().PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			p.Tick(ctx)
		}
	}
}

// Tick acquires one sample and runs it through the pipeline
func (p *Poller) Tick(ctx context.Context) Result {
	p.reconnect(ctx)

	p.mu.Lock()
	cfg := p.cfg
	src := p.source
	observers := append([]Observer(nil), p.observers...)
	p.mu.Unlock()

	sample, errs := p.acquire(ctx, cfg, src)

	p.mu.Lock()
	res := Process(cfg, sample, p.table, p.log)
	res.Errors = errs
	p.history = append(p.history, res)
	if over := len(p.history) - cfg.HistorySize; over > 0 {
		p.history = append([]Result(nil), p.history[over:]...)
	}
	p.latest = &res
	p.mu.Unlock()

	for _, o := range observers {
		o.OnTick(res)
	}
	return res
}

// acquire reads every parameter. Without a connected source, or in demo
// mode, values come from the simulator.
func (p *Poller) acquire(ctx context.Context, cfg config.Config, src Source) (models.Sample, map[models.ParamID]error) {
	now := p.clock.Now()
	if cfg.Demo || src == nil || !src.Connected() {
		return p.demo.Sample(now), nil
	}

	values := make(map[models.ParamID]models.Reading, len(models.Params))
	var errs map[models.ParamID]error
	for _, param := range models.Params {
		v, err := src.Query(ctx, param.ID)
		if err == nil {
			values[param.ID] = models.Reading{Value: v, OK: true}
			continue
		}

		if errs == nil {
			errs = make(map[models.ParamID]error)
		}
		errs[param.ID] = err
		pterm.Debug.Printfln("%s unavailable: %v", param.ID, err)

		if cfg.SubstituteOnQueryError {
			if dv, derr := p.demo.Next(param.ID); derr == nil {
				values[param.ID] = models.Reading{Value: dv, OK: true}
				continue
			}
		}
		values[param.ID] = models.Reading{}
	}
	return models.NewSample(now, values, false), errs
}

// reconnect retries the connector when the source is down, at most once
// per reconnect interval
func (p *Poller) reconnect(ctx context.Context) {
	p.mu.Lock()
	connect := p.connect
	src := p.source
	cfg := p.cfg
	now := p.clock.Now()
	due := p.lastAttempt.IsZero() || now.Sub(p.lastAttempt) >= cfg.ReconnectInterval
	p.mu.Unlock()

	if connect == nil || cfg.Demo || !due {
		return
	}
	if src != nil && src.Connected() {
		return
	}

	p.mu.Lock()
	p.lastAttempt = now
	p.mu.Unlock()

	if src != nil {
		src.Close()
	}

	next, err := connect(ctx)
	if err != nil {
		p.notifyConnectionError(err)
		return
	}

	pterm.Success.Println("Adapter connected")
	p.mu.Lock()
	p.source = next
	p.mu.Unlock()
}

func (p *Poller) notifyConnectionError(err error) {
	p.mu.Lock()
	observers := append([]Observer(nil), p.observers...)
	p.mu.Unlock()

	for _, o := range observers {
		o.OnConnectionError(err)
	}
}

// Close releases the adapter source, if any
func (p *Poller) Close() error {
	p.mu.Lock()
	src := p.source
	p.source = nil
	p.mu.Unlock()

	if src == nil {
		return nil
	}
	return src.Close()
}

// Connected reports whether an adapter is currently supplying values
func (p *Poller) Connected() bool {
	p.mu.Lock()
	src := p.source
	demoMode := p.cfg.Demo
	p.mu.Unlock()
	return !demoMode && src != nil && src.Connected()
}

// Config returns the current settings
func (p *Poller) Config() config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// O2Mode returns the display mode used for O2 values and exports
func (p *Poller) O2Mode() models.O2Mode {
	return p.Config().Mode()
}

// SetO2Mode changes the O2 display mode. Buffered rows keep raw voltages,
// so the next export uses the new mode for every row.
func (p *Poller) SetO2Mode(mode models.O2Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.O2Mode = mode.String()
}

// SetCylinders changes the cylinder count used for later ticks
func (p *Poller) SetCylinders(n int) error {
	if n <= 0 {
		return errors.New("cylinder count must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Cylinders = n
	return nil
}

// Latest returns the most recent result
func (p *Poller) Latest() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return Result{}, false
	}
	return *p.latest, true
}

// History returns up to the configured number of recent results, oldest
// first
func (p *Poller) History() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Result(nil), p.history...)
}

// Table returns a copy of the VE table
func (p *Poller) Table() *table.Table {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table.Clone()
}

// LogLen returns the number of buffered log rows
func (p *Poller) LogLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.Len()
}

// LogRows returns up to n of the most recent log rows, all when n <= 0
func (p *Poller) LogRows(n int) []samplelog.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.Tail(n)
}

// LogFilename returns the default export name for this session's log
func (p *Poller) LogFilename() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.DefaultFilename()
}

// WriteLog writes the log as CSV in mode
func (p *Poller) WriteLog(w io.Writer, mode models.O2Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.WriteCSV(w, mode)
}

// ExportLog writes the log to path in the current O2 mode. The buffer is
// kept on failure.
func (p *Poller) ExportLog(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.Export(path, p.cfg.Mode())
}

// ClearLog discards the buffered log rows
func (p *Poller) ClearLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Clear()
	p.history = nil
}

// ClearTable empties every table cell
func (p *Poller) ClearTable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table.Clear()
}
