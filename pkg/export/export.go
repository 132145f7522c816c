// Package export writes a monitoring session to disk: the sample log, the
// VE grid and PNG plots of both.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/tosih/obd-ve-monitor/pkg/config"
	"github.com/tosih/obd-ve-monitor/pkg/plot"
	"github.com/tosih/obd-ve-monitor/pkg/samplelog"
	"github.com/tosih/obd-ve-monitor/pkg/table"
)

// Session is the part of the poller an export reads from
type Session interface {
	Config() config.Config
	LogFilename() string
	LogRows(n int) []samplelog.Row
	ExportLog(path string) error
	Table() *table.Table
}

// Files lists what an export wrote
type Files struct {
	Log         string
	Table       string
	HistoryPlot string
	TablePlot   string
	Backups     []string
}

// Written returns the files that were actually created
func (f Files) Written() []string {
	var out []string
	for _, name := range []string{f.Log, f.Table, f.HistoryPlot, f.TablePlot} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// CreateBackup copies filename to a timestamped sibling
func CreateBackup(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	backupName := filename + ".backup_" + timestamp
	if err := os.WriteFile(backupName, data, 0644); err != nil {
		return "", err
	}
	return backupName, nil
}

// ExportSession writes the log CSV, the VE grid CSV and the plots into dir.
// Files that already exist are backed up first. A plot with nothing to show
// is skipped; every other failure is returned after the remaining files
// have been attempted.
func ExportSession(s Session, dir string) (Files, error) {
	var files Files

	if err := os.MkdirAll(dir, 0755); err != nil {
		return files, fmt.Errorf("creating export directory: %w", err)
	}

	cfg := s.Config()
	logName := s.LogFilename()
	stem := strings.TrimSuffix(strings.TrimPrefix(logName, "obd_log_"), ".csv")

	spinner, _ := pterm.DefaultSpinner.Start("Exporting session...")

	var errs []error
	step := func(name string, write func(path string) error) string {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			backup, err := CreateBackup(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("backing up %s: %w", path, err))
				return ""
			}
			files.Backups = append(files.Backups, backup)
		}

		spinner.UpdateText("Writing " + name)
		if err := write(path); err != nil {
			if errors.Is(err, plot.ErrNoData) {
				pterm.Debug.Printf("Skipping %s: %v\n", name, err)
				return ""
			}
			errs = append(errs, err)
			return ""
		}
		return path
	}

	files.Log = step(logName, s.ExportLog)

	t := s.Table()
	files.Table = step("ve_table_"+stem+".csv", func(path string) error {
		return t.ExportCSV(path, cfg.Cylinders)
	})

	rows := s.LogRows(0)
	files.HistoryPlot = step("ve_history_"+stem+".png", func(path string) error {
		p, err := plot.VEHistory(rows, cfg.Cylinders)
		if err != nil {
			return err
		}
		return plot.Save(p, path)
	})
	files.TablePlot = step("ve_scatter_"+stem+".png", func(path string) error {
		p, err := plot.TableScatter(t, cfg.Cylinders)
		if err != nil {
			return err
		}
		return plot.Save(p, path)
	})

	if err := errors.Join(errs...); err != nil {
		spinner.Warning(fmt.Sprintf("Export to %s finished with errors", dir))
		return files, err
	}

	spinner.Success(fmt.Sprintf("Session exported to %s (%d files)", dir, len(files.Written())))
	return files, nil
}
