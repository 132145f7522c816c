package obd

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

// Decode converts the data bytes of a mode 01 response into the physical
// value for param
func Decode(param models.Param, data []byte) (float64, error) {
	var value float64

	switch param.DataType {
	case "uint8":
		if len(data) < 1 {
			return 0, fmt.Errorf("%s: expected 1 data byte, got %d", param.ID, len(data))
		}
		value = float64(data[0])*param.Scale + param.Offset2

	case "uint16":
		if len(data) < 2 {
			return 0, fmt.Errorf("%s: expected 2 data bytes, got %d", param.ID, len(data))
		}
		value = float64(binary.BigEndian.Uint16(data))*param.Scale + param.Offset2

	default:
		return 0, fmt.Errorf("%s: unknown data type %q", param.ID, param.DataType)
	}

	return value, nil
}

// parseHexLine turns "41 0C 1A F8" or "410C1AF8" into bytes
func parseHexLine(line string) ([]byte, error) {
	clean := strings.ReplaceAll(line, " ", "")
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("odd length response %q", line)
	}
	return hex.DecodeString(clean)
}

// findResponse returns the data bytes following the mode/PID echo for the
// first line answering the request. Extra ECUs answering the same request
// are ignored.
func findResponse(lines []string, mode byte, pid byte, hasPID bool) ([]byte, error) {
	want := mode + 0x40
	for _, line := range lines {
		raw, err := parseHexLine(line)
		if err != nil || len(raw) == 0 || raw[0] != want {
			continue
		}
		if !hasPID {
			return raw[1:], nil
		}
		if len(raw) >= 2 && raw[1] == pid {
			return raw[2:], nil
		}
	}
	return nil, fmt.Errorf("no %02X response in %q", want, strings.Join(lines, " "))
}

// parseLines splits a raw adapter reply into meaningful lines, dropping the
// command echo and progress messages
func parseLines(raw, cmd string) []string {
	raw = strings.ReplaceAll(raw, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.EqualFold(strings.ReplaceAll(line, " ", ""), cmd):
		case strings.HasPrefix(line, "SEARCHING"):
		case strings.HasPrefix(line, "BUS INIT"):
		default:
			lines = append(lines, line)
		}
	}
	return lines
}

// replyError maps the adapter's textual error replies onto sentinels
func replyError(lines []string) error {
	for _, line := range lines {
		upper := strings.ToUpper(line)
		switch {
		case upper == "?":
			return ErrUnsupported
		case strings.Contains(upper, "NO DATA"):
			return ErrNoData
		case strings.Contains(upper, "UNABLE TO CONNECT"),
			strings.Contains(upper, "CAN ERROR"),
			strings.Contains(upper, "BUS ERROR"),
			strings.Contains(upper, "BUS BUSY"),
			strings.Contains(upper, "STOPPED"):
			return fmt.Errorf("%w: %s", ErrAdapter, line)
		}
	}
	return nil
}

// decodeBitmap expands a 4 byte supported-PID bitmap starting after base
func decodeBitmap(base byte, data []byte) []byte {
	var pids []byte
	for i := 0; i < 32 && i/8 < len(data); i++ {
		if data[i/8]&(0x80>>(uint(i)%8)) != 0 {
			pids = append(pids, base+byte(i)+1)
		}
	}
	return pids
}
