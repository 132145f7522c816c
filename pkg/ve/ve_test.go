package ve

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

func TestEstimate_PinnedValue(t *testing.T) {
	// g/cyl = (8*60) / (1500*8) = 0.04; ve = 0.04 * 298.15 / 45
	got, ok := Estimate(8.0, 3000, 45, 25, 8)
	require.True(t, ok)
	assert.InDelta(t, 0.04*298.15/45, got, 1e-12)
	assert.Equal(t, 0.265, Round3(got))
}

func TestEstimate_Undefined(t *testing.T) {
	tests := []struct {
		name              string
		maf, rpm, mp, iat float64
		cyl               int
	}{
		{"zero rpm", 8, 0, 45, 25, 8},
		{"negative rpm", 8, -100, 45, 25, 8},
		{"zero map", 8, 3000, 0, 25, 8},
		{"zero cylinders", 8, 3000, 45, 25, 0},
		{"negative maf", -1, 3000, 45, 25, 8},
		{"below absolute zero", 8, 3000, 45, -300, 8},
		{"nan maf", math.NaN(), 3000, 45, 25, 8},
		{"inf rpm", 8, math.Inf(1), 45, 25, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, ok := Estimate(tt.maf, tt.rpm, tt.mp, tt.iat, tt.cyl)
				assert.False(t, ok)
			})
		})
	}
}

func TestEstimate_FiniteNonNegative(t *testing.T) {
	for _, maf := range []float64{0, 0.5, 3, 45, 250} {
		for _, rpm := range []float64{1, 400, 3000, 8000} {
			for _, mp := range []float64{1, 15, 101.3, 250} {
				for _, cyl := range []int{1, 4, 6, 8, 12} {
					v, ok := Estimate(maf, rpm, mp, 25, cyl)
					require.True(t, ok)
					assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
					assert.GreaterOrEqual(t, v, 0.0)
				}
			}
		}
	}
}

func sample(values map[models.ParamID]float64) models.Sample {
	r := make(map[models.ParamID]models.Reading)
	for k, v := range values {
		r[k] = models.Reading{Value: v, OK: true}
	}
	return models.NewSample(time.Unix(0, 0), r, false)
}

func TestFromSample(t *testing.T) {
	full := map[models.ParamID]float64{
		models.ParamMAF: 8, models.ParamRPM: 3000, models.ParamMAP: 45, models.ParamIAT: 25,
	}

	r := FromSample(sample(full), 8)
	require.True(t, r.OK)
	assert.InDelta(t, 0.265022, r.Value, 1e-6)

	missingMAF := map[models.ParamID]float64{
		models.ParamRPM: 3000, models.ParamMAP: 45, models.ParamIAT: 25,
	}
	assert.False(t, FromSample(sample(missingMAF), 8).OK)

	zeroMAF := map[models.ParamID]float64{
		models.ParamMAF: 0, models.ParamRPM: 3000, models.ParamMAP: 45, models.ParamIAT: 25,
	}
	assert.False(t, FromSample(sample(zeroMAF), 8).OK)

	zeroRPM := map[models.ParamID]float64{
		models.ParamMAF: 8, models.ParamRPM: 0, models.ParamMAP: 45, models.ParamIAT: 25,
	}
	assert.False(t, FromSample(sample(zeroRPM), 8).OK)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 1.235, Round3(1.23456))
	assert.Equal(t, -0.5, Round3(-0.5))
}
