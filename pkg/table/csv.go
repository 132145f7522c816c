package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const gridHeader = "MAP/RPM"

// WriteCSV writes the grid with RPM columns and MAP rows. Empty cells are
// left blank.
func (t *Table) WriteCSV(w io.Writer, cylinders int) error {
	writer := csv.NewWriter(w)

	writer.Write([]string{"# VE Table (g*K/kPa)"})
	writer.Write([]string{fmt.Sprintf("# Cylinders: %d", cylinders)})
	writer.Write([]string{fmt.Sprintf("# Size: %dx%d", t.MAPAxis.Count, t.RPMAxis.Count)})

	header := []string{gridHeader}
	for _, rpm := range t.RPMAxis.Values() {
		header = append(header, formatAxis(rpm))
	}
	writer.Write(header)

	for i := 0; i < t.MAPAxis.Count; i++ {
		row := []string{formatAxis(t.MAPAxis.Value(i))}
		for j := 0; j < t.RPMAxis.Count; j++ {
			if c, ok := t.cells[Key{RPM: j, MAP: i}]; ok {
				row = append(row, strconv.FormatFloat(c.VE, 'f', 3, 64))
			} else {
				row = append(row, "")
			}
		}
		writer.Write(row)
	}

	writer.Flush()
	return writer.Error()
}

// ExportCSV writes the grid to filename
func (t *Table) ExportCSV(filename string, cylinders int) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	if err := t.WriteCSV(file, cylinders); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return file.Close()
}

// ReadCSV parses a grid written by WriteCSV. Axes are taken from the header
// row and column; bands are recomputed for the given cylinder count.
func ReadCSV(r io.Reader, cylinders int) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading grid: %w", err)
	}

	dataStart := -1
	for i, record := range records {
		if len(record) > 0 && strings.HasPrefix(record[0], gridHeader) {
			dataStart = i
			break
		}
	}
	if dataStart < 0 {
		return nil, fmt.Errorf("invalid grid format: couldn't find %q header", gridHeader)
	}

	rpmValues, err := parseFloats(records[dataStart][1:])
	if err != nil {
		return nil, fmt.Errorf("RPM header: %w", err)
	}
	rows := records[dataStart+1:]
	mapValues := make([]float64, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("MAP value %q: %w", row[0], err)
		}
		mapValues = append(mapValues, v)
	}

	rpmAxis, err := axisFrom(rpmValues)
	if err != nil {
		return nil, fmt.Errorf("RPM axis: %w", err)
	}
	mapAxis, err := axisFrom(mapValues)
	if err != nil {
		return nil, fmt.Errorf("MAP axis: %w", err)
	}

	t := New(rpmAxis, mapAxis)
	var zero time.Time
	for i, row := range rows {
		if i >= mapAxis.Count {
			break
		}
		for j := 1; j < len(row) && j-1 < rpmAxis.Count; j++ {
			field := strings.TrimSpace(row[j])
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("cell [%d,%d] %q: %w", i, j-1, field, err)
			}
			key := Key{RPM: j - 1, MAP: i}
			t.cells[key] = Cell{
				Key:       key,
				RPM:       rpmAxis.Value(key.RPM),
				MAP:       mapAxis.Value(key.MAP),
				VE:        v,
				Band:      Classify(v, cylinders),
				UpdatedAt: zero,
			}
		}
	}
	return t, nil
}

// ImportCSV reads a grid from filename
func ImportCSV(filename string, cylinders int) (*Table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file, cylinders)
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func axisFrom(values []float64) (Axis, error) {
	switch len(values) {
	case 0:
		return Axis{}, fmt.Errorf("no values")
	case 1:
		return Axis{Start: values[0], Step: 1, Count: 1}, nil
	}
	a := Axis{Start: values[0], Step: values[1] - values[0], Count: len(values)}
	return a, a.Validate()
}

func formatAxis(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
