package models

import (
	"fmt"
	"strings"
	"time"
)

// Reading is one parameter value; OK is false when the value is unavailable
type Reading struct {
	Value float64
	OK    bool
}

// Sample is the set of readings captured on a single poll tick.
// It is not modified after the poller assembles it.
type Sample struct {
	Time   time.Time
	Values map[ParamID]Reading
	Demo   bool
}

// NewSample copies values into a new Sample
func NewSample(at time.Time, values map[ParamID]Reading, demo bool) Sample {
	v := make(map[ParamID]Reading, len(values))
	for k, r := range values {
		v[k] = r
	}
	return Sample{Time: at, Values: v, Demo: demo}
}

// Get returns the value for id and whether it is available
func (s Sample) Get(id ParamID) (float64, bool) {
	r, ok := s.Values[id]
	if !ok || !r.OK {
		return 0, false
	}
	return r.Value, true
}

// O2Mode selects how oxygen sensor readings are presented
type O2Mode int

const (
	O2Lambda O2Mode = iota
	O2EquivalenceRatio
	O2Voltage
)

// ParseO2Mode accepts the config and query-string spellings of a mode
func ParseO2Mode(s string) (O2Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lambda", "λ", "":
		return O2Lambda, nil
	case "equivalence", "equivalence_ratio", "phi", "φ":
		return O2EquivalenceRatio, nil
	case "voltage", "v":
		return O2Voltage, nil
	default:
		return O2Lambda, fmt.Errorf("unknown O2 display mode %q: expected lambda, equivalence or voltage", s)
	}
}

func (m O2Mode) String() string {
	switch m {
	case O2EquivalenceRatio:
		return "equivalence"
	case O2Voltage:
		return "voltage"
	default:
		return "lambda"
	}
}

// Suffix is the CSV column suffix for the mode
func (m O2Mode) Suffix() string {
	switch m {
	case O2EquivalenceRatio:
		return "Phi"
	case O2Voltage:
		return "Voltage"
	default:
		return "Lambda"
	}
}

// Symbol is the unit symbol used when displaying a converted value
func (m O2Mode) Symbol() string {
	switch m {
	case O2EquivalenceRatio:
		return "φ"
	case O2Voltage:
		return "V"
	default:
		return "λ"
	}
}

// Band is the severity classification of a VE value
type Band int

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandHigh:
		return "HIGH"
	case BandMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// MarshalText encodes the band by name so JSON map keys read LOW/MEDIUM/HIGH
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}
