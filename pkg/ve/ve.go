// Package ve derives volumetric efficiency from MAF, RPM, MAP and intake
// temperature.
package ve

import (
	"math"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

const kelvinOffset = 273.15

// Reading is a VE value attached to a sample; OK is false when undefined
type Reading struct {
	Value float64
	OK    bool
}

// GramsPerCylinder returns the air mass per cylinder per engine cycle.
// A four-stroke cycle spans two crank revolutions.
func GramsPerCylinder(maf, rpm float64, cylinders int) (float64, bool) {
	if !finite(maf) || !finite(rpm) || rpm <= 0 || cylinders <= 0 || maf < 0 {
		return 0, false
	}
	return (maf * 60) / ((rpm / 2) * float64(cylinders)), true
}

// Estimate computes VE in g·K/kPa. It reports false instead of failing when
// an input is out of range: rpm, mapKPa and cylinders must be positive, maf
// must not be negative and the absolute intake temperature must be positive.
func Estimate(maf, rpm, mapKPa, iatC float64, cylinders int) (float64, bool) {
	if !finite(mapKPa) || mapKPa <= 0 || !finite(iatC) {
		return 0, false
	}
	iatK := iatC + kelvinOffset
	if iatK <= 0 {
		return 0, false
	}
	gCyl, ok := GramsPerCylinder(maf, rpm, cylinders)
	if !ok {
		return 0, false
	}
	return (gCyl * iatK) / mapKPa, true
}

// FromSample computes the VE reading for a sample. MAF, RPM and MAP must be
// present and strictly positive, and IAT present.
func FromSample(s models.Sample, cylinders int) Reading {
	maf, ok1 := s.Get(models.ParamMAF)
	rpm, ok2 := s.Get(models.ParamRPM)
	mapKPa, ok3 := s.Get(models.ParamMAP)
	iat, ok4 := s.Get(models.ParamIAT)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Reading{}
	}
	if maf <= 0 || rpm <= 0 || mapKPa <= 0 {
		return Reading{}
	}
	v, ok := Estimate(maf, rpm, mapKPa, iat, cylinders)
	return Reading{Value: v, OK: ok}
}

// Round3 rounds v to three decimal places for display
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
