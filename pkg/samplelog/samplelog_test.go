package samplelog

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

func fullSample(at time.Time, o2 float64) models.Sample {
	values := map[models.ParamID]models.Reading{
		models.ParamRPM:         {Value: 3000, OK: true},
		models.ParamSpeed:       {Value: 54, OK: true},
		models.ParamCoolantTemp: {Value: 88, OK: true},
		models.ParamMAP:         {Value: 45.25, OK: true},
		models.ParamIAT:         {Value: 25, OK: true},
		models.ParamThrottle:    {Value: 17.6470588, OK: true},
		models.ParamMAF:         {Value: 8.1234, OK: true},
		models.ParamTiming:      {Value: 12.5, OK: true},
		models.ParamO2B1S1:      {Value: o2, OK: true},
		models.ParamO2B2S1:      {Value: 0.5, OK: true},
	}
	return models.NewSample(at, values, false)
}

func readFile(path string) ([]Row, models.O2Mode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.O2Lambda, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func TestConvertO2(t *testing.T) {
	lambda, ok := ConvertO2(0.45, models.O2Lambda)
	require.True(t, ok)
	assert.InDelta(t, 1.0, lambda, 1e-12)

	lambda, ok = ConvertO2(0.9, models.O2Lambda)
	require.True(t, ok)
	assert.InDelta(t, 0.5, lambda, 1e-12)

	phi, ok := ConvertO2(0.9, models.O2EquivalenceRatio)
	require.True(t, ok)
	assert.InDelta(t, 2.0, phi, 1e-12)

	v, ok := ConvertO2(0.123, models.O2Voltage)
	require.True(t, ok)
	assert.Equal(t, 0.123, v)

	_, ok = ConvertO2(0, models.O2Lambda)
	assert.False(t, ok)
}

func TestFormatO2(t *testing.T) {
	assert.Equal(t, "1.000 λ", FormatO2(models.Reading{Value: 0.45, OK: true}, models.O2Lambda))
	assert.Equal(t, "0.450 V", FormatO2(models.Reading{Value: 0.45, OK: true}, models.O2Voltage))
	assert.Equal(t, "---", FormatO2(models.Reading{}, models.O2Lambda))
}

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{
		"Timestamp", "RPM", "Speed", "Coolant_Temp", "MAP", "IAT", "Throttle", "MAF",
		"Timing_Advance", "VE", "O2_B1S1_Lambda", "O2_B2S1_Lambda",
	}, Header(models.O2Lambda))
	assert.Equal(t, "O2_B1S1_Voltage", Header(models.O2Voltage)[10])
	assert.Equal(t, "O2_B2S1_Phi", Header(models.O2EquivalenceRatio)[11])
}

func TestAppend_CopiesSample(t *testing.T) {
	l := New(time.Now())
	s := fullSample(time.Now(), 0.45)
	l.Append(s, ve.Reading{Value: 0.3, OK: true})
	s.Values[models.ParamRPM] = models.Reading{Value: 1, OK: true}

	require.Equal(t, 1, l.Len())
	assert.Equal(t, 3000.0, l.Rows()[0].Values[models.ParamRPM].Value)
}

func TestWriteCSV_ExportTimeModeGovernsAllRows(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	l := New(at)
	// appended while lambda was displayed, exported as voltage
	l.Append(fullSample(at, 0.45), ve.Reading{Value: 0.265022, OK: true})
	l.Append(fullSample(at.Add(time.Second), 0.9), ve.Reading{})

	var buf bytes.Buffer
	require.NoError(t, l.WriteCSV(&buf, models.O2Voltage))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header(models.O2Voltage), records[0])

	expected := []string{
		"2024-05-06 07:08:09", "3000.000", "54.000", "88.000", "45.250", "25.000",
		"17.647", "8.123", "12.500", "0.265", "0.450", "0.500",
	}
	if diff := cmp.Diff(expected, records[1]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "", records[2][9], "undefined VE is left blank")
	assert.Equal(t, "0.900", records[2][10])

	buf.Reset()
	require.NoError(t, l.WriteCSV(&buf, models.O2Lambda))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "O2_B1S1_Lambda", records[0][10])
	assert.Equal(t, "1.000", records[1][10])
	assert.Equal(t, "0.500", records[2][10])
}

func TestMissingValuesAreBlank(t *testing.T) {
	l := New(time.Now())
	values := map[models.ParamID]models.Reading{
		models.ParamRPM: {Value: 900, OK: true},
		models.ParamMAF: {},
	}
	l.Append(models.NewSample(time.Now(), values, false), ve.Reading{})

	rec := Record(l.Rows()[0], models.O2Lambda)
	assert.Equal(t, "900.000", rec[1])
	for _, i := range []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11} {
		assert.Equal(t, "", rec[i], "column %d", i)
	}
}

func TestExport_RoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	l := New(at)
	l.Append(fullSample(at, 0.45), ve.Reading{Value: 0.265022, OK: true})
	l.Append(fullSample(at.Add(500*time.Millisecond), 0.72), ve.Reading{Value: 0.4, OK: true})

	for _, mode := range []models.O2Mode{models.O2Lambda, models.O2EquivalenceRatio, models.O2Voltage} {
		t.Run(mode.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), l.DefaultFilename())
			require.NoError(t, l.Export(path, mode))

			rows, gotMode, err := readFile(path)
			require.NoError(t, err)
			assert.Equal(t, mode, gotMode)
			require.Len(t, rows, l.Len())

			for i, want := range l.Rows() {
				got := rows[i]
				assert.True(t, want.Time.Truncate(time.Second).Equal(got.Time))
				for id, r := range want.Values {
					require.True(t, got.Values[id].OK, "%s", id)
					assert.InDelta(t, r.Value, got.Values[id].Value, 0.002, "%s", id)
				}
				assert.InDelta(t, ve.Round3(want.VE.Value), got.VE.Value, 1e-9)
			}
		})
	}
}

func TestExport_FailureKeepsBuffer(t *testing.T) {
	l := New(time.Now())
	l.Append(fullSample(time.Now(), 0.45), ve.Reading{})

	err := l.Export(filepath.Join(t.TempDir(), "no", "such", "dir.csv"), models.O2Lambda)
	require.Error(t, err)
	assert.Equal(t, 1, l.Len())

	path := filepath.Join(t.TempDir(), "retry.csv")
	require.NoError(t, l.Export(path, models.O2Lambda))
}

func TestClearAndTail(t *testing.T) {
	l := New(time.Now())
	for i := 0; i < 5; i++ {
		l.Append(fullSample(time.Now(), 0.45), ve.Reading{Value: float64(i), OK: true})
	}
	tail := l.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, 4.0, tail[1].VE.Value)
	assert.Len(t, l.Tail(0), 5)

	l.Clear()
	assert.Equal(t, 0, l.Len())
}

func TestReadCSV_Errors(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, _, err = ReadCSV(strings.NewReader("Timestamp,RPM,O2_B1S1_Unknown\n"))
	assert.Error(t, err)
}

func TestDefaultFilename(t *testing.T) {
	l := New(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	name := l.DefaultFilename()
	assert.True(t, strings.HasPrefix(name, "obd_log_20240102_030405_"))
	assert.True(t, strings.HasSuffix(name, ".csv"))
}
