package renderer

import (
	"errors"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/poller"
	"github.com/tosih/obd-ve-monitor/pkg/table"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

type fixedState struct {
	t    *table.Table
	mode models.O2Mode
}

func (s fixedState) Table() *table.Table    { return s.t }
func (s fixedState) O2Mode() models.O2Mode { return s.mode }

func smallTable() *table.Table {
	rpm := table.Axis{Start: 1000, Step: 1000, Count: 3}
	mapAxis := table.Axis{Start: 20, Step: 20, Count: 2}
	t := table.New(rpm, mapAxis)
	t.Update(1000, 20, 0.3, 8, time.Now())
	t.Update(3000, 40, 0.5, 8, time.Now())
	return t
}

func TestBuildTableString_Values(t *testing.T) {
	out := BuildTableString(smallTable(), ModeValues)
	lines := strings.Split(out, "\n")

	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, lines[0], "1000")
	assert.Contains(t, lines[0], "3000")
	assert.Contains(t, lines[2], " 0.300")
	assert.Contains(t, lines[3], " 0.500")
	assert.Contains(t, lines[3], "·")
	assert.Contains(t, out, "Legend:")
}

func TestBuildTableString_Modes(t *testing.T) {
	sym := BuildTableString(smallTable(), ModeSymbols)
	assert.Contains(t, sym, "████", "0.5 at 8 cylinders is high")
	assert.Contains(t, sym, "░░░░")
	assert.Contains(t, sym, "RPM/100")

	heat := BuildTableString(smallTable(), ModeHeatmap)
	assert.Contains(t, heat, "Heatmap:")

	empty := BuildTableString(table.New(table.DefaultRPMAxis, table.DefaultMAPAxis), ModeHeatmap)
	assert.NotContains(t, empty, "▄▄▄▄")
}

func TestFindMinMax(t *testing.T) {
	min, max := findMinMax([][]float64{{math.NaN(), 0.4}, {0.2, math.NaN()}})
	assert.Equal(t, 0.2, min)
	assert.Equal(t, 0.4, max)

	min, _ = findMinMax([][]float64{{math.NaN()}})
	assert.True(t, math.IsNaN(min))
}

func TestSampleTableData(t *testing.T) {
	values := map[models.ParamID]models.Reading{
		models.ParamRPM:    {Value: 3000, OK: true},
		models.ParamO2B1S1: {Value: 0.45, OK: true},
	}
	res := poller.Result{
		Sample:      models.NewSample(time.Now(), values, false),
		VE:          ve.Reading{Value: 0.265022, OK: true},
		Cell:        table.Cell{Band: models.BandLow},
		CellUpdated: true,
	}

	data := SampleTableData(res, models.O2Lambda)
	require.Len(t, data, len(models.Params)+2)
	assert.Equal(t, []string{"Engine RPM", "3000.0", "rpm"}, data[1])
	assert.Equal(t, "---", data[2][1], "missing speed")

	var o2 []string
	for _, row := range data {
		if row[0] == "O2 B1S1" {
			o2 = row
		}
	}
	require.NotNil(t, o2)
	assert.Equal(t, "1.000 λ", o2[1])
	assert.Equal(t, "0.265 LOW", data[len(data)-1][1])

	res.VE = ve.Reading{}
	data = SampleTableData(res, models.O2Voltage)
	assert.Equal(t, "---", data[len(data)-1][1])
}

func TestLive_Frame(t *testing.T) {
	l := NewLive(fixedState{t: smallTable(), mode: models.O2Voltage}, ModeValues)
	l.OnConnectionError(errors.New("connecting to /dev/rfcomm0: no such device"))

	values := map[models.ParamID]models.Reading{models.ParamO2B1S1: {Value: 0.45, OK: true}}
	res := poller.Result{Sample: models.NewSample(time.Now(), values, true)}

	frame := l.Frame(res)
	assert.Contains(t, frame, "Source: demo")
	assert.Contains(t, frame, "O2: voltage")
	assert.Contains(t, frame, "0.450 V")
	assert.Contains(t, frame, "no such device")
	assert.Contains(t, frame, "Legend:")

	l.OnTick(res)
	assert.Equal(t, 1, l.Rendered())
	assert.NoError(t, l.Stop())
}
