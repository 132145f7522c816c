package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/poller"
	"github.com/tosih/obd-ve-monitor/pkg/samplelog"
	"github.com/tosih/obd-ve-monitor/pkg/table"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

var defaultLiveParams = []models.ParamID{models.ParamRPM, models.ParamMAP, models.ParamMAF}

// handleTableChart renders the VE table as a heatmap
func (s *Server) handleTableChart(w http.ResponseWriter, r *http.Request) {
	t := s.poller.Table()
	hm := TableHeatMap(t, s.poller.Config().Cylinders)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleLiveChart renders VE and the selected parameters over the recent
// history, one line chart each
func (s *Server) handleLiveChart(w http.ResponseWriter, r *http.Request) {
	params := defaultLiveParams
	if raw := r.URL.Query().Get("params"); raw != "" {
		params = nil
		for _, name := range strings.Split(raw, ",") {
			p, ok := models.ParamByID(models.ParamID(strings.TrimSpace(name)))
			if !ok {
				http.Error(w, fmt.Sprintf("Unknown parameter %q", name), http.StatusBadRequest)
				return
			}
			params = append(params, p.ID)
		}
	}

	page := components.NewPage()
	page.PageTitle = "VE Monitor Live"
	for _, chart := range HistoryLines(s.poller.History(), params, s.poller.O2Mode()) {
		page.AddCharts(chart)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// TableHeatMap builds a heatmap of the filled cells, RPM across and MAP up
func TableHeatMap(t *table.Table, cylinders int) *charts.HeatMap {
	rpmLabels := make([]string, 0, t.RPMAxis.Count)
	for _, v := range t.RPMAxis.Values() {
		rpmLabels = append(rpmLabels, fmt.Sprintf("%.0f", v))
	}
	mapLabels := make([]string, 0, t.MAPAxis.Count)
	for _, v := range t.MAPAxis.Values() {
		mapLabels = append(mapLabels, fmt.Sprintf("%.0f", v))
	}

	summary := t.Summary()
	max := summary.Max
	if max <= 0 {
		max = table.ThresholdsFor(cylinders).High * 1.5
	}

	data := make([]opts.HeatMapData, 0, t.Len())
	for _, cell := range t.Cells() {
		data = append(data, opts.HeatMapData{
			Value: [3]interface{}{cell.Key.RPM, cell.Key.MAP, ve.Round3(cell.VE)},
			Name:  cell.Band.String(),
		})
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "VE Table", Width: "1100px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "VE Table",
			Subtitle: fmt.Sprintf("%d cylinders, %d/%d cells, mean %.3f", cylinders, summary.Cells, summary.Total, summary.Mean),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: rpmLabels, Name: "RPM", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: mapLabels, Name: "MAP (kPa)", NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(max),
			InRange:    &opts.VisualMapInRange{Color: []string{"#d73027", "#fee08b", "#1a9850"}},
		}),
	)
	hm.SetXAxis(rpmLabels).AddSeries("VE", data)
	return hm
}

// HistoryLines builds one line chart for VE and one per parameter. Missing
// values are left as gaps.
func HistoryLines(history []poller.Result, params []models.ParamID, mode models.O2Mode) []components.Charter {
	times := make([]string, len(history))
	for i, res := range history {
		times[i] = res.Sample.Time.Format("15:04:05.0")
	}

	veData := make([]opts.LineData, len(history))
	for i, res := range history {
		veData[i] = opts.LineData{Value: "-"}
		if res.VE.OK {
			veData[i] = opts.LineData{Value: ve.Round3(res.VE.Value)}
		}
	}

	out := []components.Charter{newLine("VE", "g·K/kPa", times, veData)}
	for _, id := range params {
		p, _ := models.ParamByID(id)
		unit := p.Unit
		if id.IsO2() {
			unit = mode.Symbol()
		}

		data := make([]opts.LineData, len(history))
		for i, res := range history {
			data[i] = opts.LineData{Value: "-"}
			reading := res.Sample.Values[id]
			if !reading.OK {
				continue
			}
			v := reading.Value
			if id.IsO2() {
				converted, ok := samplelog.ConvertO2(v, mode)
				if !ok {
					continue
				}
				v = converted
			}
			data[i] = opts.LineData{Value: ve.Round3(v)}
		}
		out = append(out, newLine(p.Name, unit, times, data))
	}
	return out
}

func newLine(title, unit string, times []string, data []opts.LineData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "260px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: unit}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(times).AddSeries(title, data)
	return line
}
