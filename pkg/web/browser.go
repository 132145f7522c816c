package web

import (
	"os/exec"
	"runtime"

	"github.com/pterm/pterm"
)

// openBrowser opens url in the default browser. Failure is only logged; the
// address is printed on startup.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		return
	}

	if err := cmd.Start(); err != nil {
		pterm.Debug.Printfln("Could not open browser: %v", err)
	}
}
