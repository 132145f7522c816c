package renderer

import (
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/poller"
	"github.com/tosih/obd-ve-monitor/pkg/table"
)

// State is the part of the poller the live view reads
type State interface {
	Table() *table.Table
	O2Mode() models.O2Mode
}

// Live redraws the readout and the VE table in place on every tick
type Live struct {
	state       State
	displayMode string

	mu       sync.Mutex
	area     *pterm.AreaPrinter
	lastErr  string
	rendered int
}

// NewLive creates a live view over state
func NewLive(state State, displayMode string) *Live {
	return &Live{state: state, displayMode: displayMode}
}

// Start begins drawing into a terminal area
func (l *Live) Start() error {
	area, err := pterm.DefaultArea.WithRemoveWhenDone(false).Start()
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.area = area
	l.mu.Unlock()
	return nil
}

// Stop leaves the last frame on screen
func (l *Live) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.area == nil {
		return nil
	}
	err := l.area.Stop()
	l.area = nil
	return err
}

// OnTick implements poller.Observer
func (l *Live) OnTick(res poller.Result) {
	frame := l.Frame(res)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rendered++
	if l.area != nil {
		l.area.Update(frame)
	}
}

// OnConnectionError implements poller.Observer
func (l *Live) OnConnectionError(err error) {
	l.mu.Lock()
	l.lastErr = err.Error()
	l.mu.Unlock()
	pterm.Debug.Printfln("connection: %v", err)
}

// Frame renders one screen for res
func (l *Live) Frame(res poller.Result) string {
	var b strings.Builder

	mode := l.state.O2Mode()
	rows, err := pterm.DefaultTable.WithHasHeader().WithData(SampleTableData(res, mode)).Srender()
	if err != nil {
		rows = err.Error()
	}

	status := pterm.FgGreen.Sprint("adapter")
	if res.Sample.Demo {
		status = pterm.FgYellow.Sprint("demo")
	}
	b.WriteString("Source: " + status + "  O2: " + mode.String() + "\n")

	l.mu.Lock()
	lastErr := l.lastErr
	l.mu.Unlock()
	if lastErr != "" && res.Sample.Demo {
		b.WriteString(pterm.FgRed.Sprint("Last connection error: "+lastErr) + "\n")
	}

	b.WriteString(rows)
	b.WriteString("\n")
	b.WriteString(BuildTableString(l.state.Table(), l.displayMode))
	return b.String()
}

// Rendered returns the number of ticks received
func (l *Live) Rendered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rendered
}
