// Package plot renders session history and the VE table as PNG images.
package plot

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/samplelog"
	"github.com/tosih/obd-ve-monitor/pkg/table"
)

// ErrNoData is returned when there is nothing to plot
var ErrNoData = errors.New("nothing to plot")

var (
	veColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	highColor   = color.RGBA{R: 26, G: 152, B: 80, A: 255}
	mediumColor = color.RGBA{R: 230, G: 171, B: 2, A: 255}
	lowColor    = color.RGBA{R: 215, G: 48, B: 39, A: 255}
)

// VEHistory plots VE against seconds since the first row. Rows without a
// defined VE are skipped.
func VEHistory(rows []samplelog.Row, cylinders int) (*plot.Plot, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	start := rows[0].Time
	pts := make(plotter.XYs, 0, len(rows))
	for _, r := range rows {
		if !r.VE.OK {
			continue
		}
		pts = append(pts, plotter.XY{X: r.Time.Sub(start).Seconds(), Y: r.VE.Value})
	}
	if len(pts) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("VE history (%d cylinders)", cylinders)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "VE (g·K/kPa)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = veColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("VE", line)

	addThresholds(p, cylinders)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// TableScatter plots every filled cell's VE against its RPM, one series
// per band
func TableScatter(t *table.Table, cylinders int) (*plot.Plot, error) {
	cells := t.Cells()
	if len(cells) == 0 {
		return nil, ErrNoData
	}

	byBand := map[models.Band]plotter.XYs{}
	for _, c := range cells {
		byBand[c.Band] = append(byBand[c.Band], plotter.XY{X: c.RPM, Y: c.VE})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("VE by RPM (%d/%d cells)", len(cells), t.RPMAxis.Count*t.MAPAxis.Count)
	p.X.Label.Text = "RPM"
	p.Y.Label.Text = "VE (g·K/kPa)"

	for _, band := range []models.Band{models.BandLow, models.BandMedium, models.BandHigh} {
		pts, ok := byBand[band]
		if !ok {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = bandColor(band)
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(band.String(), sc)
	}

	addThresholds(p, cylinders)

	p.Legend.Top = true
	return p, nil
}

// addThresholds draws the band boundaries as horizontal dashed lines
func addThresholds(p *plot.Plot, cylinders int) {
	th := table.ThresholdsFor(cylinders)
	for _, b := range []struct {
		name  string
		value float64
		color color.Color
	}{
		{fmt.Sprintf("HIGH > %.3f", th.High), th.High, highColor},
		{fmt.Sprintf("MEDIUM > %.3f", th.Medium), th.Medium, mediumColor},
	} {
		value := b.value
		fn := plotter.NewFunction(func(float64) float64 { return value })
		fn.Color = b.color
		fn.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		fn.Width = vg.Points(1)
		p.Add(fn)
		p.Legend.Add(b.name, fn)
	}
}

func bandColor(b models.Band) color.Color {
	switch b {
	case models.BandHigh:
		return highColor
	case models.BandMedium:
		return mediumColor
	default:
		return lowColor
	}
}

// Save writes p to path; the format follows the extension
func Save(p *plot.Plot, path string) error {
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot to %s: %w", path, err)
	}
	return nil
}
