// Package scanner lists serial ports and picks out the ones likely to be
// an OBD-II adapter.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"go.bug.st/serial/enumerator"
)

// Kind is the transport a port most likely runs over
type Kind int

const (
	KindOther Kind = iota
	KindUSBSerial
	KindBluetooth
)

func (k Kind) String() string {
	switch k {
	case KindBluetooth:
		return "Bluetooth"
	case KindUSBSerial:
		return "USB serial"
	default:
		return "Serial"
	}
}

var (
	bluetoothKeywords = []string{"RFCOMM", "BLUETOOTH", "SPP", "STANDARD SERIAL", "BT"}
	adapterKeywords   = []string{"OBDX", "OBD", "ELM", "VLINK", "VGATE", "PROV"}
	// common USB-serial bridges used in wired ELM327 clones
	bridgeKeywords = []string{"CP210", "CH340", "CH341", "FTDI", "FT232", "PL2303"}
)

// ScanResult describes one port
type ScanResult struct {
	Name        string
	Description string
	VID         string
	PID         string
	Kind        Kind
	Adapter     bool // name or description mentions an OBD adapter
	Version     string
	ProbeErr    error
}

// Lister enumerates the serial ports on this machine
type Lister func() ([]*enumerator.PortDetails, error)

// Prober opens name as an adapter and returns its version banner
type Prober func(ctx context.Context, name string) (string, error)

// Classify inspects a port's name and USB details
func Classify(p *enumerator.PortDetails) ScanResult {
	r := ScanResult{
		Name:        p.Name,
		Description: p.Product,
		VID:         p.VID,
		PID:         p.PID,
	}

	text := strings.ToUpper(p.Name + " " + p.Product)
	switch {
	case containsWord(text, bluetoothKeywords):
		r.Kind = KindBluetooth
	case p.IsUSB || containsWord(text, bridgeKeywords):
		r.Kind = KindUSBSerial
	}
	r.Adapter = containsWord(text, adapterKeywords)
	return r
}

// containsWord reports whether any keyword appears in text. Keywords of
// two letters or fewer must stand alone so that "BT" does not match
// "USBTTY".
func containsWord(text string, keywords []string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	for _, kw := range keywords {
		if len(kw) <= 2 {
			for _, f := range fields {
				if f == kw {
					return true
				}
			}
			continue
		}
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Scan lists ports ordered with likely adapters first
func Scan(list Lister) ([]ScanResult, error) {
	ports, err := list()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}

	results := make([]ScanResult, 0, len(ports))
	for _, p := range ports {
		results = append(results, Classify(p))
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Adapter != results[j].Adapter {
			return results[i].Adapter
		}
		if results[i].Kind != results[j].Kind {
			return results[i].Kind > results[j].Kind
		}
		return results[i].Name < results[j].Name
	})
	return results, nil
}

// Probe tries to open every Bluetooth, USB or adapter-looking port and
// records the adapter version or the failure
func Probe(ctx context.Context, results []ScanResult, probe Prober) []ScanResult {
	out := make([]ScanResult, len(results))
	copy(out, results)
	for i := range out {
		if !out[i].Candidate() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		out[i].Version, out[i].ProbeErr = probe(ctx, out[i].Name)
	}
	return out
}

// Candidate reports whether the port is worth trying as an adapter
func (r ScanResult) Candidate() bool {
	return r.Adapter || r.Kind != KindOther
}

// ScanPorts lists the ports, optionally probes the candidates, and prints
// the result
func ScanPorts(ctx context.Context, probe Prober) error {
	spinner, _ := pterm.DefaultSpinner.Start("Scanning serial ports...")

	results, err := Scan(enumerator.GetDetailedPortsList)
	if err != nil {
		spinner.Fail("Port scan failed")
		return err
	}
	spinner.Success(fmt.Sprintf("Found %d port(s)", len(results)))

	if probe != nil {
		spinner, _ = pterm.DefaultSpinner.Start("Probing candidate ports...")
		results = Probe(ctx, results, probe)
		spinner.Success("Probe finished")
	}

	pterm.Println()
	pterm.DefaultSection.Println("Serial Ports")
	displayResults(results)
	return nil
}

func displayResults(results []ScanResult) {
	if len(results) == 0 {
		pterm.Info.Println("No serial ports found")
		pterm.Info.Println("Pair the adapter and bind it to a port (for example /dev/rfcomm0) first")
		return
	}

	pterm.DefaultTable.WithHasHeader().WithData(TableData(results)).Render()

	candidates := 0
	for _, r := range results {
		if r.Adapter {
			candidates++
		}
	}
	pterm.Info.Printf("\n%d port(s), %d likely adapter(s)\n", len(results), candidates)
}

// TableData formats results for pterm.DefaultTable
func TableData(results []ScanResult) pterm.TableData {
	data := pterm.TableData{
		{"Port", "Description", "Type", "USB ID", "Adapter", "Probe"},
	}
	for _, r := range results {
		usbID := ""
		if r.VID != "" {
			usbID = r.VID + ":" + r.PID
		}
		adapter := ""
		if r.Adapter {
			adapter = "likely"
		}
		probe := ""
		switch {
		case r.ProbeErr != nil:
			probe = pterm.Red("failed")
		case r.Version != "":
			probe = pterm.Green(r.Version)
		}
		data = append(data, []string{r.Name, r.Description, r.Kind.String(), usbID, adapter, probe})
	}
	return data
}
