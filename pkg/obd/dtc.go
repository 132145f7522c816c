package obd

import (
	"context"
	"fmt"
)

// DTC is a stored diagnostic trouble code
type DTC struct {
	Code        string
	Description string
}

// MILStatus is the decoded mode 01 PID 01 monitor status
type MILStatus struct {
	On       bool
	DTCCount int
}

var dtcDescriptions = map[string]string{
	"P0100": "Mass or volume air flow circuit malfunction",
	"P0101": "Mass or volume air flow circuit range/performance",
	"P0102": "Mass or volume air flow circuit low input",
	"P0103": "Mass or volume air flow circuit high input",
	"P0105": "Manifold absolute pressure circuit malfunction",
	"P0106": "Manifold absolute pressure circuit range/performance",
	"P0110": "Intake air temperature circuit malfunction",
	"P0113": "Intake air temperature circuit high input",
	"P0115": "Engine coolant temperature circuit malfunction",
	"P0128": "Coolant thermostat below regulating temperature",
	"P0130": "O2 sensor circuit malfunction (bank 1 sensor 1)",
	"P0133": "O2 sensor circuit slow response (bank 1 sensor 1)",
	"P0150": "O2 sensor circuit malfunction (bank 2 sensor 1)",
	"P0171": "System too lean (bank 1)",
	"P0172": "System too rich (bank 1)",
	"P0174": "System too lean (bank 2)",
	"P0175": "System too rich (bank 2)",
	"P0300": "Random/multiple cylinder misfire detected",
	"P0335": "Crankshaft position sensor A circuit malfunction",
	"P0420": "Catalyst system efficiency below threshold (bank 1)",
	"P0430": "Catalyst system efficiency below threshold (bank 2)",
	"P0440": "Evaporative emission control system malfunction",
	"P0500": "Vehicle speed sensor malfunction",
	"P0505": "Idle control system malfunction",
}

// Describe returns a generic description for code
func Describe(code string) string {
	if d, ok := dtcDescriptions[code]; ok {
		return d
	}
	return "Unknown trouble code"
}

// DecodeDTC formats the two raw bytes of a trouble code, e.g. 01 33 -> P0133
func DecodeDTC(a, b byte) string {
	system := [4]byte{'P', 'C', 'B', 'U'}[a>>6]
	return fmt.Sprintf("%c%d%X%02X", system, (a>>4)&0x03, a&0x0F, b)
}

// ReadDTCs returns the stored trouble codes (mode 03)
func (s *Session) ReadDTCs(ctx context.Context) ([]DTC, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.command(ctx, "03")
	if err != nil {
		return nil, fmt.Errorf("reading trouble codes: %w", err)
	}

	var codes []DTC
	seen := make(map[string]bool)
	for _, line := range lines {
		raw, err := parseHexLine(line)
		if err != nil || len(raw) == 0 || raw[0] != 0x43 {
			continue
		}
		data := raw[1:]
		// CAN replies carry a leading count byte
		if len(data)%2 == 1 {
			data = data[1:]
		}
		for i := 0; i+1 < len(data); i += 2 {
			if data[i] == 0 && data[i+1] == 0 {
				continue
			}
			code := DecodeDTC(data[i], data[i+1])
			if seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, DTC{Code: code, Description: Describe(code)})
		}
	}
	return codes, nil
}

// ClearDTCs clears stored trouble codes and turns off the MIL (mode 04)
func (s *Session) ClearDTCs(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.command(ctx, "04")
	if err != nil {
		return fmt.Errorf("clearing trouble codes: %w", err)
	}
	if _, err := findResponse(lines, 0x04, 0, false); err != nil {
		return fmt.Errorf("clearing trouble codes: %w", err)
	}
	return nil
}

// MILStatus reads whether the check engine light is on and how many codes
// are stored
func (s *Session) MILStatus(ctx context.Context) (MILStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.command(ctx, "0101")
	if err != nil {
		return MILStatus{}, fmt.Errorf("reading MIL status: %w", err)
	}
	data, err := findResponse(lines, 0x01, 0x01, true)
	if err != nil || len(data) < 1 {
		return MILStatus{}, fmt.Errorf("reading MIL status: %w", ErrNoData)
	}
	return MILStatus{
		On:       data[0]&0x80 != 0,
		DTCCount: int(data[0] & 0x7F),
	}, nil
}
