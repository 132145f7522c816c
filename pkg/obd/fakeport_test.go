package obd

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// scriptedPort answers each command from a script, like an ELM327 with
// echo off. Unknown commands get "?".
type scriptedPort struct {
	mu       sync.Mutex
	script   map[string]string
	pending  bytes.Buffer
	in       bytes.Buffer
	sent     []string
	closed   bool
	readErr  error
	silentOn map[string]bool
}

func newScriptedPort(script map[string]string) *scriptedPort {
	full := map[string]string{
		"ATZ":   "\r\rELM327 v1.5\r\r>",
		"ATE0":  "ATE0\rOK\r\r>",
		"ATL0":  "OK\r\r>",
		"ATS0":  "OK\r\r>",
		"ATH0":  "OK\r\r>",
		"ATSP0": "OK\r\r>",
		// 05, 0B-10, 11, 14 and the next block; O2 B2S1 (18) is missing
		"0100": "SEARCHING...\r4100083F9001\r\r>",
		"0120": "412000000000\r\r>",
	}
	for k, v := range script {
		full[k] = v
	}
	return &scriptedPort{script: full, silentOn: map[string]bool{}}
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	p.pending.Write(b)
	for {
		line, err := p.pending.ReadString('\r')
		if err != nil {
			// keep the partial command for the next write
			p.pending.WriteString(line)
			break
		}
		cmd := strings.TrimSuffix(line, "\r")
		p.sent = append(p.sent, cmd)
		if p.silentOn[cmd] {
			continue
		}
		reply, ok := p.script[cmd]
		if !ok {
			reply = "?\r\r>"
		}
		p.in.WriteString(reply)
	}
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.readErr != nil {
		err := p.readErr
		p.mu.Unlock()
		return 0, err
	}
	if p.closed {
		p.mu.Unlock()
		return 0, io.EOF
	}
	if p.in.Len() > 0 {
		n, _ := p.in.Read(b)
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()
	// behave like a serial read timeout
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *scriptedPort) commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func (p *scriptedPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
