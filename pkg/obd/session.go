// Package obd talks to an ELM327 compatible OBD-II adapter over a serial or
// Bluetooth SPP port.
package obd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"go.bug.st/serial"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

// readPoll bounds each blocking read so timeouts and cancellation are noticed
const readPoll = 100 * time.Millisecond

var initCommands = []string{"ATZ", "ATE0", "ATL0", "ATS0", "ATH0", "ATSP0"}

// Port is the transport under a session. A go.bug.st/serial port satisfies
// it, and tests substitute a scripted fake.
type Port interface {
	io.ReadWriteCloser
}

// Session is an initialised adapter connection
type Session struct {
	mu        sync.Mutex
	port      Port
	name      string
	timeout   time.Duration
	connected bool
	version   string
	supported map[byte]bool
}

// Connect opens the serial port at name and initialises the adapter
func Connect(ctx context.Context, name string, opts PortOptions) (*Session, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, &ConnectError{Port: name, Err: err}
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, &ConnectError{Port: name, Err: err}
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, &ConnectError{Port: name, Err: err}
	}
	if err := port.SetReadTimeout(readPoll); err != nil {
		port.Close()
		return nil, &ConnectError{Port: name, Err: err}
	}

	return NewSession(ctx, port, name, opts.Timeout)
}

// NewSession initialises an adapter on an already open port. The port is
// closed if initialisation fails.
func NewSession(ctx context.Context, port Port, name string, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &Session{
		port:      port,
		name:      name,
		timeout:   timeout,
		connected: true,
	}

	for _, cmd := range initCommands {
		lines, err := s.command(ctx, cmd)
		if err != nil {
			port.Close()
			return nil, &ConnectError{Port: name, Err: fmt.Errorf("%s: %w", cmd, err)}
		}
		if cmd == "ATZ" && len(lines) > 0 {
			s.version = lines[len(lines)-1]
		}
	}
	pterm.Debug.Printfln("Adapter on %s: %s", name, s.version)

	pids, err := s.scanSupported(ctx)
	if err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNotConnected) {
			port.Close()
			return nil, &ConnectError{Port: name, Err: err}
		}
		// some adapters only answer once the ignition is on; query everything
		pterm.Warning.Printfln("Could not read supported PIDs: %v", err)
	} else {
		s.supported = make(map[byte]bool, len(pids))
		for _, pid := range pids {
			s.supported[pid] = true
		}
	}

	return s, nil
}

// Name returns the port the session was opened on
func (s *Session) Name() string {
	return s.name
}

// Version returns the adapter identification printed on reset
func (s *Session) Version() string {
	return s.version
}

// Connected reports whether the session is still usable. A transport
// failure marks the session as lost.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close releases the port
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	return s.port.Close()
}

// Supports reports whether the vehicle advertised pid. Before the bitmap
// has been read every PID is assumed supported.
func (s *Session) Supports(pid byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.supported == nil {
		return true
	}
	return s.supported[pid]
}

// Query reads one mode 01 parameter and returns its physical value
func (s *Session) Query(ctx context.Context, id models.ParamID) (float64, error) {
	param, ok := models.ParamByID(id)
	if !ok {
		return 0, fmt.Errorf("unknown parameter %q", id)
	}
	if !s.Supports(param.PID) {
		return 0, &QueryError{PID: param.PID, Err: ErrUnsupported}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.command(ctx, fmt.Sprintf("01%02X", param.PID))
	if err != nil {
		return 0, &QueryError{PID: param.PID, Err: err}
	}
	data, err := findResponse(lines, 0x01, param.PID, true)
	if err != nil {
		return 0, &QueryError{PID: param.PID, Err: err}
	}
	value, err := Decode(param, data)
	if err != nil {
		return 0, &QueryError{PID: param.PID, Err: err}
	}
	return value, nil
}

// SupportedPIDs returns the mode 01 PIDs advertised by the vehicle
func (s *Session) SupportedPIDs(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanSupported(ctx)
}

// scanSupported walks the PID 00/20/40 bitmaps. The last bit of each block
// says whether the next block exists.
func (s *Session) scanSupported(ctx context.Context) ([]byte, error) {
	var pids []byte
	for _, base := range []byte{0x00, 0x20, 0x40} {
		lines, err := s.command(ctx, fmt.Sprintf("01%02X", base))
		if err != nil {
			if base > 0 {
				break
			}
			return nil, err
		}
		data, err := findResponse(lines, 0x01, base, true)
		if err != nil {
			if base > 0 {
				break
			}
			return nil, err
		}
		block := decodeBitmap(base, data)
		pids = append(pids, block...)
		if len(block) == 0 || block[len(block)-1] != base+0x20 {
			break
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}

// command sends cmd and returns the reply lines. The caller holds s.mu,
// except during initialisation.
func (s *Session) command(ctx context.Context, cmd string) ([]string, error) {
	if !s.connected {
		return nil, ErrNotConnected
	}

	if _, err := s.port.Write([]byte(cmd + "\r")); err != nil {
		s.lost(err)
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	raw, err := s.readPrompt(ctx)
	if err != nil {
		return nil, err
	}

	lines := parseLines(raw, cmd)
	pterm.Debug.Printfln("%s -> %s", cmd, strings.Join(lines, " | "))
	if err := replyError(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// readPrompt reads until the '>' prompt, the query timeout or cancellation
func (s *Session) readPrompt(ctx context.Context) (string, error) {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var buf bytes.Buffer
	chunk := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		n, err := s.port.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if i := bytes.IndexByte(buf.Bytes(), '>'); i >= 0 {
				return string(buf.Bytes()[:i]), nil
			}
		}
		if err != nil {
			s.lost(err)
			return "", fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
	}
}

func (s *Session) lost(err error) {
	if !s.connected {
		return
	}
	pterm.Warning.Printfln("Lost adapter on %s: %v", s.name, err)
	s.connected = false
	s.port.Close()
}
