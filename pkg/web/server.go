package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/tosih/obd-ve-monitor/pkg/models"
	"github.com/tosih/obd-ve-monitor/pkg/poller"
	"github.com/tosih/obd-ve-monitor/pkg/samplelog"
	"github.com/tosih/obd-ve-monitor/pkg/table"
	"github.com/tosih/obd-ve-monitor/pkg/ve"
)

//go:embed templates/*
var templates embed.FS

// SampleResponse is the latest tick as served by /api/sample
type SampleResponse struct {
	Time      string              `json:"time"`
	Demo      bool                `json:"demo"`
	Connected bool                `json:"connected"`
	Values    map[string]*float64 `json:"values"`
	O2        map[string]string   `json:"o2"`
	VE        *float64            `json:"ve"`
	Band      string              `json:"band,omitempty"`
	Cell      *CellRef            `json:"cell,omitempty"`
	LogRows   int                 `json:"log_rows"`
	Errors    map[string]string   `json:"errors,omitempty"`
}

// CellRef locates a table cell by axis value
type CellRef struct {
	RPM float64 `json:"rpm"`
	MAP float64 `json:"map"`
}

// TableResponse is the VE table as served by /api/table
type TableResponse struct {
	Cylinders int           `json:"cylinders"`
	RPMAxis   []float64     `json:"rpm_axis"`
	MAPAxis   []float64     `json:"map_axis"`
	Cells     [][]*float64  `json:"cells"`
	Bands     [][]string    `json:"bands"`
	Current   *CellRef      `json:"current,omitempty"`
	Summary   table.Summary `json:"summary"`
}

// LogResponse is the buffered log as served by /api/log
type LogResponse struct {
	Mode   string     `json:"mode"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
	Total  int        `json:"total"`
}

// Server is the browser dashboard over a running poller
type Server struct {
	poller *poller.Poller
	addr   string
	mux    *http.ServeMux
}

// NewServer creates a dashboard listening on addr
func NewServer(p *poller.Poller, addr string) *Server {
	s := &Server{
		poller: p,
		addr:   addr,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/api/sample", s.handleSample)
	s.mux.HandleFunc("/api/table", s.handleTable)
	s.mux.HandleFunc("/api/log", s.handleLog)
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/mode", s.handleMode)
	s.mux.HandleFunc("/api/clear", s.handleClear)
	s.mux.HandleFunc("/chart/table", s.handleTableChart)
	s.mux.HandleFunc("/chart/live", s.handleLiveChart)
	return s
}

// Handler returns the dashboard's routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context, open bool) error {
	url := "http://" + s.addr
	if strings.HasPrefix(s.addr, ":") {
		url = "http://localhost" + s.addr
	}

	pterm.DefaultHeader.WithFullWidth().
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("🌐 VE Monitor Dashboard Started")

	pterm.Info.Printf("Dashboard at %s\n", url)
	pterm.Info.Println("Press Ctrl+C to stop")
	pterm.Println()

	if open {
		openBrowser(url)
	}

	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	content, err := templates.ReadFile("templates/index.html")
	if err != nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	res, ok := s.poller.Latest()
	if !ok {
		http.Error(w, "No sample yet", http.StatusServiceUnavailable)
		return
	}
	mode := s.poller.O2Mode()
	cfg := s.poller.Config()

	response := SampleResponse{
		Time:      res.Sample.Time.Format(samplelog.TimeLayout),
		Demo:      res.Sample.Demo,
		Connected: s.poller.Connected(),
		Values:    make(map[string]*float64, len(res.Sample.Values)),
		O2:        make(map[string]string),
		LogRows:   s.poller.LogLen(),
	}
	for _, p := range models.Params {
		v, ok := res.Sample.Get(p.ID)
		if p.ID.IsO2() {
			response.O2[string(p.ID)] = samplelog.FormatO2(res.Sample.Values[p.ID], mode)
		}
		if ok {
			response.Values[string(p.ID)] = floatPtr(v)
		} else {
			response.Values[string(p.ID)] = nil
		}
	}
	if res.VE.OK {
		response.VE = floatPtr(ve.Round3(res.VE.Value))
	}
	if res.CellUpdated {
		response.Band = res.Cell.Band.String()
		response.Cell = &CellRef{
			RPM: cfg.RPMAxis.Value(res.Cell.Key.RPM),
			MAP: cfg.MAPAxis.Value(res.Cell.Key.MAP),
		}
	}
	if len(res.Errors) > 0 {
		response.Errors = make(map[string]string, len(res.Errors))
		for id, err := range res.Errors {
			response.Errors[string(id)] = err.Error()
		}
	}

	writeJSON(w, response)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	t := s.poller.Table()
	cylinders := s.poller.Config().Cylinders

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="ve_table.csv"`)
		if err := t.WriteCSV(w, cylinders); err != nil {
			pterm.Error.Printf("Writing table CSV: %v\n", err)
		}
		return
	}

	response := TableResponse{
		Cylinders: cylinders,
		RPMAxis:   t.RPMAxis.Values(),
		MAPAxis:   t.MAPAxis.Values(),
		Cells:     make([][]*float64, t.MAPAxis.Count),
		Bands:     make([][]string, t.MAPAxis.Count),
		Summary:   t.Summary(),
	}
	for i := range response.Cells {
		response.Cells[i] = make([]*float64, t.RPMAxis.Count)
		response.Bands[i] = make([]string, t.RPMAxis.Count)
	}
	for _, cell := range t.Cells() {
		response.Cells[cell.Key.MAP][cell.Key.RPM] = floatPtr(ve.Round3(cell.VE))
		response.Bands[cell.Key.MAP][cell.Key.RPM] = cell.Band.String()
	}
	if key, ok := t.Current(); ok {
		response.Current = &CellRef{RPM: t.RPMAxis.Value(key.RPM), MAP: t.MAPAxis.Value(key.MAP)}
	}

	writeJSON(w, response)
}

// modeParam reads ?mode=, defaulting to the poller's current mode
func (s *Server) modeParam(r *http.Request) (models.O2Mode, error) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		return s.poller.O2Mode(), nil
	}
	return models.ParseO2Mode(raw)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	mode, err := s.modeParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
	}

	rows := s.poller.LogRows(limit)
	response := LogResponse{
		Mode:   mode.String(),
		Header: samplelog.Header(mode),
		Rows:   make([][]string, len(rows)),
		Total:  s.poller.LogLen(),
	}
	for i, row := range rows {
		response.Rows[i] = samplelog.Record(row, mode)
	}

	writeJSON(w, response)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	mode, err := s.modeParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.poller.LogFilename()))
	if err := s.poller.WriteLog(w, mode); err != nil {
		pterm.Error.Printf("Exporting log: %v\n", err)
	}
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var body struct {
			Mode string `json:"mode"`
		}
		raw := r.URL.Query().Get("mode")
		if raw == "" {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			raw = body.Mode
		}
		mode, err := models.ParseO2Mode(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.poller.SetO2Mode(mode)
		pterm.Info.Printf("O2 display mode set to %s\n", mode)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mode := s.poller.O2Mode()
	writeJSON(w, map[string]string{
		"mode":   mode.String(),
		"symbol": mode.Symbol(),
		"suffix": mode.Suffix(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Query().Get("what") {
	case "table":
		s.poller.ClearTable()
	case "log":
		s.poller.ClearLog()
	default:
		http.Error(w, "what must be table or log", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func floatPtr(v float64) *float64 {
	return &v
}
