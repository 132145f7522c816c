package table

import "github.com/tosih/obd-ve-monitor/pkg/models"

// Thresholds are the exclusive lower bounds for the HIGH and MEDIUM bands
type Thresholds struct {
	High   float64
	Medium float64
}

var (
	eightCylinder = Thresholds{High: 0.45, Medium: 0.35}
	fourCylinder  = Thresholds{High: 0.9, Medium: 0.7}
)

// ThresholdsFor returns the band thresholds for an engine. Counts between
// four and eight interpolate linearly between the two fixed tiers.
func ThresholdsFor(cylinders int) Thresholds {
	switch {
	case cylinders >= 8:
		return eightCylinder
	case cylinders <= 4:
		return fourCylinder
	}
	f := float64(cylinders-4) / 4
	return Thresholds{
		High:   fourCylinder.High + f*(eightCylinder.High-fourCylinder.High),
		Medium: fourCylinder.Medium + f*(eightCylinder.Medium-fourCylinder.Medium),
	}
}

// Classify assigns ve to a band
func Classify(ve float64, cylinders int) models.Band {
	th := ThresholdsFor(cylinders)
	switch {
	case ve > th.High:
		return models.BandHigh
	case ve > th.Medium:
		return models.BandMedium
	default:
		return models.BandLow
	}
}
