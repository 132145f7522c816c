// Package samplelog buffers polled samples for the session and exports them
// as CSV.
package samplelog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

// TimeLayout is the timestamp format of the Timestamp column
const TimeLayout = "2006-01-02 15:04:05"

const veColumn = "VE"

// Row is one logged sample. O2 values are kept as raw voltages so that the
// display mode can be applied when the log is exported.
type Row struct {
	Time   time.Time
	Values map[models.ParamID]models.Reading
	VE     ve.Reading
}

// Log is the append-only sample buffer for one session. It is not safe for
// concurrent use; callers serialise access.
type Log struct {
	SessionID string
	Started   time.Time

	rows []Row
}

// New creates an empty log with a fresh session id
func New(started time.Time) *Log {
	return &Log{
		SessionID: uuid.NewString(),
		Started:   started,
	}
}

// Append adds one row for sample
func (l *Log) Append(s models.Sample, v ve.Reading) {
	values := make(map[models.ParamID]models.Reading, len(s.Values))
	for k, r := range s.Values {
		values[k] = r
	}
	l.rows = append(l.rows, Row{Time: s.Time, Values: values, VE: v})
}

// Len returns the number of buffered rows
func (l *Log) Len() int {
	return len(l.rows)
}

// Rows returns a copy of the buffered rows
func (l *Log) Rows() []Row {
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}

// Tail returns up to n of the most recent rows
func (l *Log) Tail(n int) []Row {
	if n <= 0 || n > len(l.rows) {
		n = len(l.rows)
	}
	out := make([]Row, n)
	copy(out, l.rows[len(l.rows)-n:])
	return out
}

// Clear discards every buffered row
func (l *Log) Clear() {
	l.rows = nil
}

// rawColumns are the parameters logged ahead of VE, in order
func rawColumns() []models.Param {
	var out []models.Param
	for _, p := range models.Params {
		if !p.ID.IsO2() {
			out = append(out, p)
		}
	}
	return out
}

func o2Columns() []models.Param {
	var out []models.Param
	for _, p := range models.Params {
		if p.ID.IsO2() {
			out = append(out, p)
		}
	}
	return out
}

// Header returns the CSV header for mode
func Header(mode models.O2Mode) []string {
	header := []string{"Timestamp"}
	for _, p := range rawColumns() {
		header = append(header, string(p.ID))
	}
	header = append(header, veColumn)
	for _, p := range o2Columns() {
		header = append(header, string(p.ID)+"_"+mode.Suffix())
	}
	return header
}

// Record flattens a row into CSV fields for mode
func Record(r Row, mode models.O2Mode) []string {
	rec := []string{r.Time.Format(TimeLayout)}
	for _, p := range rawColumns() {
		rec = append(rec, formatReading(r.Values[p.ID]))
	}
	if r.VE.OK {
		rec = append(rec, formatFloat(r.VE.Value))
	} else {
		rec = append(rec, "")
	}
	for _, p := range o2Columns() {
		reading := r.Values[p.ID]
		if !reading.OK {
			rec = append(rec, "")
			continue
		}
		v, ok := ConvertO2(reading.Value, mode)
		if !ok {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, formatFloat(v))
	}
	return rec
}

// WriteCSV writes every buffered row. The mode passed here governs the
// header and the O2 columns of all rows, including rows appended while a
// different mode was displayed.
func (l *Log) WriteCSV(w io.Writer, mode models.O2Mode) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(mode)); err != nil {
		return err
	}
	for _, r := range l.rows {
		if err := writer.Write(Record(r, mode)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Export writes the log to path. The buffer is kept whether or not the
// export succeeds.
func (l *Log) Export(path string, mode models.O2Mode) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exporting log to %s: %w", path, err)
	}
	if err := l.WriteCSV(file, mode); err != nil {
		file.Close()
		return fmt.Errorf("exporting log to %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("exporting log to %s: %w", path, err)
	}
	return nil
}

// DefaultFilename names an export file for the session
func (l *Log) DefaultFilename() string {
	id := l.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("obd_log_%s_%s.csv", l.Started.Format("20060102_150405"), id)
}

// ReadCSV parses a file written by WriteCSV. O2 columns are converted back
// to voltages using the mode named in the header.
func ReadCSV(r io.Reader) ([]Row, models.O2Mode, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, models.O2Lambda, fmt.Errorf("reading log: %w", err)
	}
	if len(records) == 0 {
		return nil, models.O2Lambda, fmt.Errorf("reading log: empty file")
	}

	mode, err := modeFromHeader(records[0])
	if err != nil {
		return nil, mode, err
	}
	header := records[0]
	if len(header) != len(Header(mode)) {
		return nil, mode, fmt.Errorf("reading log: expected %d columns, got %d", len(Header(mode)), len(header))
	}

	raw := rawColumns()
	o2 := o2Columns()
	rows := make([]Row, 0, len(records)-1)
	for n, rec := range records[1:] {
		at, err := time.ParseInLocation(TimeLayout, rec[0], time.Local)
		if err != nil {
			return nil, mode, fmt.Errorf("row %d: timestamp: %w", n+1, err)
		}
		row := Row{Time: at, Values: make(map[models.ParamID]models.Reading)}

		col := 1
		for _, p := range raw {
			reading, err := parseReading(rec[col])
			if err != nil {
				return nil, mode, fmt.Errorf("row %d: %s: %w", n+1, p.ID, err)
			}
			row.Values[p.ID] = reading
			col++
		}

		veReading, err := parseReading(rec[col])
		if err != nil {
			return nil, mode, fmt.Errorf("row %d: VE: %w", n+1, err)
		}
		row.VE = ve.Reading{Value: veReading.Value, OK: veReading.OK}
		col++

		for _, p := range o2 {
			reading, err := parseReading(rec[col])
			if err != nil {
				return nil, mode, fmt.Errorf("row %d: %s: %w", n+1, p.ID, err)
			}
			if reading.OK {
				reading.Value, reading.OK = invertO2(reading.Value, mode)
			}
			row.Values[p.ID] = reading
			col++
		}
		rows = append(rows, row)
	}
	return rows, mode, nil
}

func modeFromHeader(header []string) (models.O2Mode, error) {
	last := header[len(header)-1]
	for _, mode := range []models.O2Mode{models.O2Lambda, models.O2EquivalenceRatio, models.O2Voltage} {
		if strings.HasSuffix(last, "_"+mode.Suffix()) {
			return mode, nil
		}
	}
	return models.O2Lambda, fmt.Errorf("reading log: unrecognised O2 column %q", last)
}

func invertO2(v float64, mode models.O2Mode) (float64, bool) {
	switch mode {
	case models.O2Voltage:
		return v, true
	case models.O2EquivalenceRatio:
		return v * stoichVoltage, true
	default:
		if v <= 0 {
			return 0, false
		}
		return stoichVoltage / v, true
	}
}

func parseReading(field string) (models.Reading, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return models.Reading{}, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return models.Reading{}, err
	}
	return models.Reading{Value: v, OK: true}, nil
}

func formatReading(r models.Reading) string {
	if !r.OK {
		return ""
	}
	return formatFloat(r.Value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
