package samplelog

import (
	"fmt"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

const (
	stoichAFR     = 14.7
	stoichVoltage = 0.45
)

// ConvertO2 converts a narrowband sensor voltage to the display mode.
// The sensor is read as AFR = 14.7 * (V / 0.45), so lambda = 14.7 / AFR
// and the equivalence ratio phi = 1 / lambda. Lambda is undefined for a
// non-positive voltage.
func ConvertO2(voltage float64, mode models.O2Mode) (float64, bool) {
	switch mode {
	case models.O2Voltage:
		return voltage, true
	case models.O2EquivalenceRatio:
		afr := stoichAFR * (voltage / stoichVoltage)
		return afr / stoichAFR, true
	default:
		if voltage <= 0 {
			return 0, false
		}
		afr := stoichAFR * (voltage / stoichVoltage)
		return stoichAFR / afr, true
	}
}

// FormatO2 renders an O2 reading for display, e.g. "1.023 λ"
func FormatO2(r models.Reading, mode models.O2Mode) string {
	if !r.OK {
		return "---"
	}
	v, ok := ConvertO2(r.Value, mode)
	if !ok {
		return "---"
	}
	return fmt.Sprintf("%.3f %s", v, mode.Symbol())
}
