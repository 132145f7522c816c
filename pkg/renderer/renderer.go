package renderer

import (
	"fmt"
	"math"
	"strings"

	"github.com/pterm/pterm"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/poller"
	"github.com/tosih/obd-ve-monitor/pkg/samplelog"
	"github.com/tosih/obd-ve-monitor/pkg/table"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

// Display modes for the VE table
const (
	ModeValues  = "values"
	ModeSymbols = "symbols"
	ModeHeatmap = "heatmap"
)

// RenderTable displays the VE table in a box titled with its summary
func RenderTable(t *table.Table, cylinders int, displayMode string) {
	s := t.Summary()
	title := fmt.Sprintf("VE Table | %d cyl | %d/%d cells | mean %.3f",
		cylinders, s.Cells, s.Total, s.Mean)

	pterm.DefaultBox.WithTitle(title).WithTitleTopLeft().Println(BuildTableString(t, displayMode))
}

// BuildTableString formats the table with RPM across and MAP down. Cells
// are coloured by band and the most recently updated cell is highlighted.
func BuildTableString(t *table.Table, displayMode string) string {
	var result strings.Builder

	grid := t.Grid()
	min, max := findMinMax(grid)
	current, hasCurrent := t.Current()

	width := 6
	if displayMode != ModeValues {
		width = 4
	}

	// Header, in hundreds of RPM when cells are narrow
	if displayMode == ModeValues {
		result.WriteString("   RPM → |")
	} else {
		result.WriteString(" RPM/100 |")
	}
	for _, rpm := range t.RPMAxis.Values() {
		if displayMode == ModeValues {
			result.WriteString(fmt.Sprintf("%6.0f", rpm))
		} else {
			result.WriteString(fmt.Sprintf("%-4.0f", rpm/100))
		}
	}
	result.WriteString("\n")
	result.WriteString("  MAP kPa |" + strings.Repeat("-", t.RPMAxis.Count*width) + "\n")

	// Data rows
	for i, mapKPa := range t.MAPAxis.Values() {
		result.WriteString(fmt.Sprintf("  %5.0f ↓ |", mapKPa))
		for j := range t.RPMAxis.Values() {
			key := table.Key{RPM: j, MAP: i}
			cell, ok := t.Get(key)
			if !ok {
				result.WriteString(pterm.FgGray.Sprint(pad("·", width)))
				continue
			}

			var text string
			switch displayMode {
			case ModeHeatmap:
				text = getHeatmapBlock(cell.VE, min, max)
			case ModeSymbols:
				symbol := bandSymbol(cell.Band)
				text = strings.Repeat(symbol, width)
			default:
				text = fmt.Sprintf("%6.3f", ve.Round3(cell.VE))
			}

			if hasCurrent && key == current {
				result.WriteString(pterm.NewStyle(pterm.BgWhite, pterm.FgBlack, pterm.Bold).Sprint(text))
			} else {
				result.WriteString(bandStyle(cell.Band).Sprint(text))
			}
		}
		result.WriteString("\n")
	}

	// Legend
	if displayMode == ModeHeatmap {
		result.WriteString("\n" + getHeatmapLegend())
	} else {
		result.WriteString("\nLegend: ")
		result.WriteString(bandStyle(models.BandLow).Sprint(bandSymbol(models.BandLow)) + " Low  ")
		result.WriteString(bandStyle(models.BandMedium).Sprint(bandSymbol(models.BandMedium)) + " Medium  ")
		result.WriteString(bandStyle(models.BandHigh).Sprint(bandSymbol(models.BandHigh)) + " High")
	}

	return result.String()
}

func pad(s string, width int) string {
	n := width - len([]rune(s))
	if n <= 0 {
		return s
	}
	return strings.Repeat(" ", n-n/2) + s + strings.Repeat(" ", n/2)
}

func bandStyle(b models.Band) *pterm.Style {
	switch b {
	case models.BandHigh:
		return pterm.NewStyle(pterm.FgGreen)
	case models.BandMedium:
		return pterm.NewStyle(pterm.FgYellow)
	default:
		return pterm.NewStyle(pterm.FgRed)
	}
}

func bandSymbol(b models.Band) string {
	switch b {
	case models.BandHigh:
		return "█"
	case models.BandMedium:
		return "▓"
	default:
		return "░"
	}
}

func getHeatmapBlock(value, min, max float64) string {
	if max == min {
		return pterm.BgGray.Sprint("▄▄▄▄")
	}

	normalized := (value - min) / (max - min)

	switch {
	case normalized < 0.2:
		return pterm.NewStyle(pterm.BgBlue, pterm.FgWhite).Sprint("▄▄▄▄")
	case normalized < 0.4:
		return pterm.NewStyle(pterm.BgCyan, pterm.FgBlack).Sprint("▄▄▄▄")
	case normalized < 0.6:
		return pterm.NewStyle(pterm.BgGreen, pterm.FgBlack).Sprint("▄▄▄▄")
	case normalized < 0.8:
		return pterm.NewStyle(pterm.BgYellow, pterm.FgBlack).Sprint("▄▄▄▄")
	default:
		return pterm.NewStyle(pterm.BgRed, pterm.FgWhite).Sprint("▄▄▄▄")
	}
}

func getHeatmapLegend() string {
	var result strings.Builder
	result.WriteString("Heatmap: ")
	result.WriteString(pterm.NewStyle(pterm.BgBlue, pterm.FgWhite).Sprint("▄▄") + " Very Low  ")
	result.WriteString(pterm.NewStyle(pterm.BgCyan, pterm.FgBlack).Sprint("▄▄") + " Low  ")
	result.WriteString(pterm.NewStyle(pterm.BgGreen, pterm.FgBlack).Sprint("▄▄") + " Medium  ")
	result.WriteString(pterm.NewStyle(pterm.BgYellow, pterm.FgBlack).Sprint("▄▄") + " High  ")
	result.WriteString(pterm.NewStyle(pterm.BgRed, pterm.FgWhite).Sprint("▄▄") + " Very High")
	return result.String()
}

// findMinMax ignores empty (NaN) cells. Both are NaN for an empty grid.
func findMinMax(data [][]float64) (float64, float64) {
	min, max := math.NaN(), math.NaN()

	for _, row := range data {
		for _, val := range row {
			if math.IsNaN(val) {
				continue
			}
			if math.IsNaN(min) || val < min {
				min = val
			}
			if math.IsNaN(max) || val > max {
				max = val
			}
		}
	}

	return min, max
}

// SampleTableData builds the rows of the live readout for one tick
func SampleTableData(res poller.Result, mode models.O2Mode) [][]string {
	data := [][]string{
		{"Parameter", "Value", "Unit"},
	}

	for _, p := range models.Params {
		reading := res.Sample.Values[p.ID]
		if p.ID.IsO2() {
			data = append(data, []string{p.Name, samplelog.FormatO2(reading, mode), ""})
			continue
		}
		value := "---"
		if reading.OK {
			value = fmt.Sprintf("%.1f", reading.Value)
		}
		data = append(data, []string{p.Name, value, p.Unit})
	}

	veText := "---"
	if res.VE.OK {
		veText = fmt.Sprintf("%.3f", ve.Round3(res.VE.Value))
		if res.CellUpdated {
			veText = bandStyle(res.Cell.Band).Sprint(veText + " " + res.Cell.Band.String())
		}
	}
	data = append(data, []string{"VE", veText, "g·K/kPa"})

	return data
}

// RenderSample prints the live readout for one tick
func RenderSample(res poller.Result, mode models.O2Mode) {
	source := "adapter"
	if res.Sample.Demo {
		source = "demo"
	}
	pterm.Info.Printfln("%s (%s)", res.Sample.Time.Format(samplelog.TimeLayout), source)
	pterm.DefaultTable.WithHasHeader().WithData(SampleTableData(res, mode)).Render()
}

// ListParams displays every monitored parameter in a table
func ListParams(supported func(pid byte) bool) {
	pterm.DefaultHeader.WithFullWidth().Println("Monitored Parameters")

	data := [][]string{
		{"Name", "PID", "Unit", "Supported", "Description"},
	}

	for _, p := range models.Params {
		ok := "?"
		if supported != nil {
			ok = "no"
			if supported(p.PID) {
				ok = "yes"
			}
		}
		data = append(data, []string{
			p.Name,
			fmt.Sprintf("0x%02X", p.PID),
			p.Unit,
			ok,
			p.Description,
		})
	}

	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
