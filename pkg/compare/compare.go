// Package compare diffs two exported VE grids.
package compare

import (
	"fmt"
	"math"
	"strings"

	"github.com/pterm/pterm"
	"gonum.org/v1/gonum/stat"

	"github.com/tosih/obd-ve-monitor/pkg/table"
)

// Diff is the cell-by-cell difference of two grids (second minus first)
type Diff struct {
	RPMAxis table.Axis
	MAPAxis table.Axis

	// Cells is [map row][rpm col]; NaN where either grid has no value
	Cells [][]float64

	Compared int // cells filled in both grids
	Changed  int
	Added    int // filled only in the second grid
	Removed  int // filled only in the first grid

	Mean        float64 // mean change over changed cells
	MaxIncrease float64
	MaxDecrease float64
}

// Tables diffs b against a. Both grids must share the same axes.
func Tables(a, b *table.Table) (Diff, error) {
	if a.RPMAxis != b.RPMAxis || a.MAPAxis != b.MAPAxis {
		return Diff{}, fmt.Errorf("grids have different axes: %dx%d vs %dx%d",
			a.MAPAxis.Count, a.RPMAxis.Count, b.MAPAxis.Count, b.RPMAxis.Count)
	}

	d := Diff{RPMAxis: a.RPMAxis, MAPAxis: a.MAPAxis}
	ga, gb := a.Grid(), b.Grid()

	var changes []float64
	d.Cells = make([][]float64, len(ga))
	for i := range ga {
		d.Cells[i] = make([]float64, len(ga[i]))
		for j := range ga[i] {
			va, vb := ga[i][j], gb[i][j]
			switch {
			case math.IsNaN(va) && math.IsNaN(vb):
				d.Cells[i][j] = math.NaN()
			case math.IsNaN(va):
				d.Cells[i][j] = math.NaN()
				d.Added++
			case math.IsNaN(vb):
				d.Cells[i][j] = math.NaN()
				d.Removed++
			default:
				diff := vb - va
				d.Cells[i][j] = diff
				d.Compared++
				if diff != 0 {
					changes = append(changes, diff)
					d.MaxIncrease = math.Max(d.MaxIncrease, diff)
					d.MaxDecrease = math.Min(d.MaxDecrease, diff)
				}
			}
		}
	}

	d.Changed = len(changes)
	if d.Changed > 0 {
		d.Mean = stat.Mean(changes, nil)
	}
	return d, nil
}

// CompareFiles loads two grid CSVs and prints their difference map
func CompareFiles(file1, file2 string, cylinders int) error {
	pterm.DefaultHeader.WithFullWidth().Println("VE Table Comparison")

	a, err := table.ImportCSV(file1, cylinders)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file1, err)
	}
	b, err := table.ImportCSV(file2, cylinders)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file2, err)
	}

	d, err := Tables(a, b)
	if err != nil {
		return err
	}

	displayComparison(d)
	return nil
}

func displayComparison(d Diff) {
	total := d.RPMAxis.Count * d.MAPAxis.Count

	pterm.Info.Printf("Cells in both files: %d / %d\n", d.Compared, total)
	if d.Compared > 0 {
		pterm.Info.Printf("Changed cells: %d / %d (%.1f%%)\n",
			d.Changed, d.Compared, float64(d.Changed)/float64(d.Compared)*100)
	}
	pterm.Info.Printf("Only in second file: %d, only in first file: %d\n", d.Added, d.Removed)
	pterm.Info.Printf("Average change: %.3f g·K/kPa\n", d.Mean)
	pterm.Info.Printf("Max increase: %.3f g·K/kPa\n", d.MaxIncrease)
	pterm.Info.Printf("Max decrease: %.3f g·K/kPa\n", d.MaxDecrease)

	pterm.Println("\nDifference Map (File2 - File1):")
	pterm.DefaultBox.Println(visualizeDifferences(d))
}

func visualizeDifferences(d Diff) string {
	var result strings.Builder

	maxAbs := 0.0
	for _, row := range d.Cells {
		for _, v := range row {
			if !math.IsNaN(v) {
				maxAbs = math.Max(maxAbs, math.Abs(v))
			}
		}
	}

	result.WriteString("  RPM → |")
	for _, rpm := range d.RPMAxis.Values() {
		result.WriteString(fmt.Sprintf("%-3.0f", rpm/100))
	}
	result.WriteString("\n")
	result.WriteString("  MAP  |" + strings.Repeat("-", d.RPMAxis.Count*3) + "\n")

	for i := len(d.Cells) - 1; i >= 0; i-- {
		result.WriteString(fmt.Sprintf("%4.0f ↓ |", d.MAPAxis.Value(i)))
		for _, v := range d.Cells[i] {
			result.WriteString(getDiffSymbol(v, maxAbs))
		}
		result.WriteString("\n")
	}

	result.WriteString("\nLegend: ")
	result.WriteString(pterm.FgBlue.Sprint("▼▼") + " Large Decrease  ")
	result.WriteString(pterm.FgCyan.Sprint("▼ ") + " Small Decrease  ")
	result.WriteString(pterm.FgGray.Sprint("··") + " No Change  ")
	result.WriteString(pterm.FgYellow.Sprint("▲ ") + " Small Increase  ")
	result.WriteString(pterm.FgRed.Sprint("▲▲") + " Large Increase  ")
	result.WriteString("   Missing")

	return result.String()
}

func getDiffSymbol(val, maxAbs float64) string {
	switch {
	case math.IsNaN(val):
		return "   "
	case val == 0 || maxAbs == 0:
		return pterm.FgGray.Sprint("·· ")
	}

	normalized := val / maxAbs

	switch {
	case normalized < -0.5:
		return pterm.FgBlue.Sprint("▼▼ ")
	case normalized < -0.1:
		return pterm.FgCyan.Sprint("▼  ")
	case normalized > 0.5:
		return pterm.FgRed.Sprint("▲▲ ")
	case normalized > 0.1:
		return pterm.FgYellow.Sprint("▲  ")
	}
	return pterm.FgGray.Sprint("·  ")
}
