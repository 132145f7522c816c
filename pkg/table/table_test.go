package table

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

func TestBucketKey(t *testing.T) {
	tests := []struct {
		name     string
		rpm, mp  float64
		expected Key
	}{
		{"first cell", 400, 15, Key{RPM: 0, MAP: 0}},
		{"below axis clamps", 0, 0, Key{RPM: 0, MAP: 0}},
		{"nearest rounds up", 3000, 45, Key{RPM: 7, MAP: 6}},
		{"nearest rounds down", 3150, 46, Key{RPM: 7, MAP: 6}},
		{"above axis clamps", 12000, 250, Key{RPM: 19, MAP: 18}},
		{"last cell", 8000, 105, Key{RPM: 19, MAP: 18}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BucketKey(tt.rpm, tt.mp, DefaultRPMAxis, DefaultMAPAxis)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, BucketKey(tt.rpm, tt.mp, DefaultRPMAxis, DefaultMAPAxis))
		})
	}
}

func TestAxisValidate(t *testing.T) {
	assert.NoError(t, DefaultRPMAxis.Validate())
	assert.Error(t, Axis{Start: 0, Step: 0, Count: 4}.Validate())
	assert.Error(t, Axis{Start: 0, Step: 10, Count: 0}.Validate())
	assert.Equal(t, 8000.0, DefaultRPMAxis.Value(19))
	assert.Len(t, DefaultMAPAxis.Values(), 19)
}

func TestClassify_Tiers(t *testing.T) {
	tests := []struct {
		ve       float64
		cyl      int
		expected models.Band
	}{
		{0.46, 8, models.BandHigh},
		{0.45, 8, models.BandMedium},
		{0.36, 8, models.BandMedium},
		{0.35, 8, models.BandLow},
		{0.46, 12, models.BandHigh},
		{0.91, 4, models.BandHigh},
		{0.9, 4, models.BandMedium},
		{0.71, 4, models.BandMedium},
		{0.7, 4, models.BandLow},
		{0.95, 2, models.BandHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Classify(tt.ve, tt.cyl), "ve=%v cyl=%d", tt.ve, tt.cyl)
	}
}

func TestThresholdsFor_Interpolates(t *testing.T) {
	six := ThresholdsFor(6)
	assert.InDelta(t, 0.675, six.High, 1e-9)
	assert.InDelta(t, 0.525, six.Medium, 1e-9)

	prev := ThresholdsFor(4)
	for cyl := 5; cyl <= 8; cyl++ {
		cur := ThresholdsFor(cyl)
		assert.Less(t, cur.High, prev.High)
		assert.Less(t, cur.Medium, prev.Medium)
		assert.Greater(t, cur.High, cur.Medium)
		prev = cur
	}
}

func TestClassify_Monotonic(t *testing.T) {
	for _, cyl := range []int{1, 3, 4, 5, 6, 7, 8, 10, 16} {
		last := models.BandLow
		for ve := 0.0; ve <= 2.0; ve += 0.001 {
			band := Classify(ve, cyl)
			require.GreaterOrEqual(t, band, last, "cyl=%d ve=%v", cyl, ve)
			last = band
		}
	}
}

func TestUpdate_LastWriteWins(t *testing.T) {
	tbl := New(DefaultRPMAxis, DefaultMAPAxis)
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tbl.Update(3000, 45, 0.5, 8, t0)
	tbl.Update(3050, 44, 0.3, 8, t0.Add(time.Second))

	require.Equal(t, 1, tbl.Len())
	cell, ok := tbl.Get(Key{RPM: 7, MAP: 6})
	require.True(t, ok)
	assert.Equal(t, 0.3, cell.VE)
	assert.Equal(t, models.BandLow, cell.Band)
	assert.Equal(t, 3200.0, cell.RPM)
	assert.Equal(t, 45.0, cell.MAP)

	cur, ok := tbl.Current()
	require.True(t, ok)
	assert.Equal(t, cell.Key, cur)

	tbl.Clear()
	assert.Equal(t, 0, tbl.Len())
	_, ok = tbl.Current()
	assert.False(t, ok)
}

func TestClone_Independent(t *testing.T) {
	tbl := New(DefaultRPMAxis, DefaultMAPAxis)
	tbl.Update(800, 30, 0.4, 8, time.Time{})
	c := tbl.Clone()
	tbl.Update(1600, 30, 0.5, 8, time.Time{})

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 2, tbl.Len())
}

func TestGrid(t *testing.T) {
	tbl := New(Axis{Start: 0, Step: 1000, Count: 3}, Axis{Start: 20, Step: 20, Count: 2})
	tbl.Update(1000, 40, 0.42, 8, time.Time{})

	grid := tbl.Grid()
	require.Len(t, grid, 2)
	require.Len(t, grid[0], 3)
	assert.Equal(t, 0.42, grid[1][1])
	assert.True(t, math.IsNaN(grid[0][0]))
}

func TestCSV_RoundTrip(t *testing.T) {
	tbl := New(DefaultRPMAxis, DefaultMAPAxis)
	tbl.Update(3000, 45, 0.26502, 8, time.Time{})
	tbl.Update(800, 100, 0.51234, 8, time.Time{})

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf, 8))

	lines := strings.Split(buf.String(), "\n")
	assert.True(t, strings.HasPrefix(lines[3], "MAP/RPM,400,800,1200"))

	got, err := ReadCSV(&buf, 8)
	require.NoError(t, err)
	assert.Equal(t, DefaultRPMAxis, got.RPMAxis)
	assert.Equal(t, DefaultMAPAxis, got.MAPAxis)
	require.Equal(t, 2, got.Len())

	c, ok := got.Get(Key{RPM: 7, MAP: 6})
	require.True(t, ok)
	assert.Equal(t, 0.265, c.VE)
	c, ok = got.Get(BucketKey(800, 100, DefaultRPMAxis, DefaultMAPAxis))
	require.True(t, ok)
	assert.Equal(t, 0.512, c.VE)
	assert.Equal(t, models.BandHigh, c.Band)
}

func TestReadCSV_MissingHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2\n"), 8)
	assert.Error(t, err)
}

func TestExportImportCSV(t *testing.T) {
	tbl := New(DefaultRPMAxis, DefaultMAPAxis)
	tbl.Update(2000, 60, 0.4, 8, time.Time{})

	path := filepath.Join(t.TempDir(), "ve_table.csv")
	require.NoError(t, tbl.ExportCSV(path, 8))

	got, err := ImportCSV(path, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	err = tbl.ExportCSV(filepath.Join(t.TempDir(), "missing", "x.csv"), 8)
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	tbl := New(DefaultRPMAxis, DefaultMAPAxis)
	s := tbl.Summary()
	assert.Equal(t, 0, s.Cells)
	assert.Equal(t, 380, s.Total)

	tbl.Update(800, 30, 0.3, 8, time.Time{})
	tbl.Update(1600, 30, 0.4, 8, time.Time{})
	tbl.Update(2400, 30, 0.5, 8, time.Time{})

	s = tbl.Summary()
	assert.Equal(t, 3, s.Cells)
	assert.InDelta(t, 0.4, s.Mean, 1e-9)
	assert.InDelta(t, 0.1, s.StdDev, 1e-9)
	assert.Equal(t, 0.3, s.Min)
	assert.Equal(t, 0.5, s.Max)
	assert.Equal(t, 1, s.Bands[models.BandLow])
	assert.Equal(t, 1, s.Bands[models.BandMedium])
	assert.Equal(t, 1, s.Bands[models.BandHigh])

	single := New(DefaultRPMAxis, DefaultMAPAxis)
	single.Update(800, 30, 0.3, 8, time.Time{})
	assert.Equal(t, 0.0, single.Summary().StdDev)
}
