package table

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tosih/obd-ve-monitor/pkg/models"
)

// Summary describes the filled cells of a table
type Summary struct {
	Cells  int                 `json:"cells"`
	Total  int                 `json:"total"`
	Mean   float64             `json:"mean"`
	StdDev float64             `json:"std_dev"`
	Min    float64             `json:"min"`
	Max    float64             `json:"max"`
	Bands  map[models.Band]int `json:"bands"`
}

// Summary computes statistics over the filled cells
func (t *Table) Summary() Summary {
	s := Summary{
		Cells: len(t.cells),
		Total: t.RPMAxis.Count * t.MAPAxis.Count,
		Bands: map[models.Band]int{},
	}
	if len(t.cells) == 0 {
		return s
	}

	values := make([]float64, 0, len(t.cells))
	for _, c := range t.Cells() {
		values = append(values, c.VE)
		s.Bands[c.Band]++
	}

	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		s.StdDev = 0
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	return s
}
