package plot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/obd-ve-monitor/pkg/samplelog"
	"github.com/tosih/obd-ve-monitor/pkg/table"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestVEHistory(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := []samplelog.Row{
		{Time: start, VE: ve.Reading{Value: 0.3, OK: true}},
		{Time: start.Add(500 * time.Millisecond), VE: ve.Reading{}},
		{Time: start.Add(time.Second), VE: ve.Reading{Value: 0.5, OK: true}},
	}

	p, err := VEHistory(rows, 8)
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "8 cylinders")

	path := filepath.Join(t.TempDir(), "history.png")
	require.NoError(t, Save(p, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestVEHistory_NoData(t *testing.T) {
	_, err := VEHistory(nil, 8)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = VEHistory([]samplelog.Row{{Time: time.Now()}}, 8)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestTableScatter(t *testing.T) {
	tbl := table.New(table.DefaultRPMAxis, table.DefaultMAPAxis)
	_, err := TableScatter(tbl, 8)
	assert.ErrorIs(t, err, ErrNoData)

	tbl.Update(2000, 40, 0.3, 8, time.Now())
	tbl.Update(3000, 60, 0.4, 8, time.Now())
	tbl.Update(4000, 80, 0.6, 8, time.Now())

	p, err := TableScatter(tbl, 8)
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "3/380")

	path := filepath.Join(t.TempDir(), "table.png")
	require.NoError(t, Save(p, path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSave_BadPath(t *testing.T) {
	p, err := VEHistory([]samplelog.Row{{Time: time.Now(), VE: ve.Reading{Value: 0.3, OK: true}}}, 4)
	require.NoError(t, err)
	assert.Error(t, Save(p, filepath.Join(t.TempDir(), "missing", "x.png")))
}
