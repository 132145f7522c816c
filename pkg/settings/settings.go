// Package settings changes monitor settings at runtime or in the config
// file through interactive prompts.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/tosih/obd-ve-monitor/pkg/config"
	"github.com/tosih/obd-ve-monitor/pkg/models"
)

// Target is something whose settings can be changed
type Target interface {
	Config() config.Config
	SetO2Mode(models.O2Mode)
	SetCylinders(int) error
}

// Clearer is a Target that also holds session data
type Clearer interface {
	ClearTable()
	ClearLog()
}

// Change is a set of edits; zero fields are left alone
type Change struct {
	O2Mode     string
	Cylinders  int
	ClearTable bool
	ClearLog   bool
}

// Empty reports whether c changes nothing
func (c Change) Empty() bool {
	return c == Change{}
}

// Apply validates and applies c to t. Nothing is changed when any field is
// invalid.
func Apply(t Target, c Change) error {
	var mode models.O2Mode
	if c.O2Mode != "" {
		m, err := models.ParseO2Mode(c.O2Mode)
		if err != nil {
			return err
		}
		mode = m
	}
	if c.Cylinders < 0 {
		return fmt.Errorf("cylinder count must be positive, got %d", c.Cylinders)
	}

	clearer, canClear := t.(Clearer)
	if (c.ClearTable || c.ClearLog) && !canClear {
		return errors.New("no session data to clear")
	}

	if c.O2Mode != "" {
		t.SetO2Mode(mode)
	}
	if c.Cylinders > 0 {
		if err := t.SetCylinders(c.Cylinders); err != nil {
			return err
		}
	}
	if c.ClearTable {
		clearer.ClearTable()
	}
	if c.ClearLog {
		clearer.ClearLog()
	}
	return nil
}

// File is a Target backed by a config value, used to edit the config file
// without a running session
type File struct {
	cfg config.Config
}

// NewFile wraps cfg
func NewFile(cfg config.Config) *File {
	return &File{cfg: cfg}
}

func (f *File) Config() config.Config { return f.cfg }

func (f *File) SetO2Mode(m models.O2Mode) { f.cfg.O2Mode = m.String() }

func (f *File) SetCylinders(n int) error {
	if n <= 0 {
		return errors.New("cylinder count must be positive")
	}
	f.cfg.Cylinders = n
	return nil
}

const (
	optO2Mode     = "O2 display mode"
	optCylinders  = "Cylinder count"
	optClearTable = "Clear VE table"
	optClearLog   = "Clear sample log"
	optSave       = "Save settings to file"
	optExit       = "Exit"
)

var modeOptions = []string{
	"lambda (λ)",
	"equivalence (φ)",
	"voltage (V)",
}

// Interactive shows the settings menu until the user exits. When
// configPath is empty, saving asks for a file name.
func Interactive(t Target, configPath string) error {
	pterm.DefaultHeader.WithFullWidth().Println("VE Monitor Settings")

	for {
		showCurrent(t.Config())

		options := []string{optO2Mode, optCylinders}
		if _, ok := t.(Clearer); ok {
			options = append(options, optClearTable, optClearLog)
		}
		options = append(options, optSave, optExit)

		selected, err := pterm.DefaultInteractiveSelect.WithOptions(options).Show("Select a setting:")
		if err != nil {
			return err
		}

		switch selected {
		case optO2Mode:
			choice, err := pterm.DefaultInteractiveSelect.WithOptions(modeOptions).Show("O2 display mode:")
			if err != nil {
				return err
			}
			applyAndReport(t, Change{O2Mode: strings.Fields(choice)[0]})

		case optCylinders:
			input, err := pterm.DefaultInteractiveTextInput.
				WithDefaultValue(strconv.Itoa(t.Config().Cylinders)).
				Show("Number of cylinders")
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(strings.TrimSpace(input))
			if err != nil || n <= 0 {
				pterm.Error.Printf("Invalid cylinder count %q\n", input)
				continue
			}
			applyAndReport(t, Change{Cylinders: n})

		case optClearTable, optClearLog:
			ok, _ := pterm.DefaultInteractiveConfirm.Show(selected + "? This cannot be undone.")
			if !ok {
				pterm.Info.Println("Cancelled.")
				continue
			}
			applyAndReport(t, Change{ClearTable: selected == optClearTable, ClearLog: selected == optClearLog})

		case optSave:
			path := configPath
			if path == "" {
				path, err = pterm.DefaultInteractiveTextInput.WithDefaultValue("obdve.yaml").Show("Config file")
				if err != nil {
					return err
				}
			}
			if err := config.Save(t.Config(), path); err != nil {
				pterm.Error.Printf("Failed to save settings: %v\n", err)
				continue
			}
			pterm.Success.Printf("Settings saved to %s\n", path)

		case optExit:
			return nil
		}
	}
}

func applyAndReport(t Target, c Change) {
	if err := Apply(t, c); err != nil {
		pterm.Error.Println(err)
		return
	}
	pterm.Success.Println("Updated.")
}

func showCurrent(cfg config.Config) {
	pterm.DefaultTable.WithData(pterm.TableData{
		{"O2 display mode", cfg.Mode().String()},
		{"Cylinders", strconv.Itoa(cfg.Cylinders)},
	}).Render()
}
