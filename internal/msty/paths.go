// Package msty contains the read-only collaborators around the administered
// desktop application: installation detection, database inspection, and
// health reporting. Nothing in this package ever writes to the application's
// data store.
package msty

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
)

// Paths are the resolved locations of the administered installation. Empty
// fields mean the path does not exist on this machine.
type Paths struct {
	App          string `json:"app,omitempty"`
	Data         string `json:"data,omitempty"`
	Sidecar      string `json:"sidecar,omitempty"`
	Database     string `json:"database,omitempty"`
	MLXModels    string `json:"mlx_models,omitempty"`
	SidecarToken string `json:"sidecar_token,omitempty"`
}

// Installation summarizes what was detected.
type Installation struct {
	Installed      bool   `json:"installed"`
	Version        string `json:"version,omitempty"`
	Paths          Paths  `json:"paths"`
	AppRunning     bool   `json:"app_running"`
	SidecarRunning bool   `json:"sidecar_running"`
	Platform       string `json:"platform"`
	Arch           string `json:"arch"`
}

var appCandidates = []string{
	"/Applications/MstyStudio.app",
	"/Applications/Msty Studio.app",
	"/Applications/Msty.app",
}

// DefaultPaths resolves the standard macOS locations, keeping only paths
// that exist.
func DefaultPaths() Paths {
	home, _ := os.UserHomeDir()
	var p Paths
	for _, app := range appCandidates {
		if exists(app) {
			p.App = app
			break
		}
	}
	for _, data := range []string{
		filepath.Join(home, "Library/Application Support/MstyStudio"),
		filepath.Join(home, "Library/Application Support/Msty"),
	} {
		if exists(data) {
			p.Data = data
			break
		}
	}
	if sidecar := filepath.Join(home, "Library/Application Support/MstySidecar"); exists(sidecar) {
		p.Sidecar = sidecar
		if token := filepath.Join(sidecar, ".token"); exists(token) {
			p.SidecarToken = token
		}
	}
	if p.Data != "" {
		if db := filepath.Join(p.Data, "msty.db"); exists(db) {
			p.Database = db
		}
		if mlx := filepath.Join(p.Data, "models-mlx"); exists(mlx) {
			p.MLXModels = mlx
		}
	}
	return p
}

var versionRe = regexp.MustCompile(`<key>CFBundleShortVersionString</key>\s*<string>([^<]+)</string>`)

// DetectInstallation resolves paths, version, and process status.
func DetectInstallation() Installation {
	p := DefaultPaths()
	inst := Installation{
		Installed: p.App != "",
		Paths:     p,
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if p.App != "" {
		if data, err := os.ReadFile(filepath.Join(p.App, "Contents/Info.plist")); err == nil {
			if m := versionRe.FindSubmatch(data); m != nil {
				inst.Version = string(m[1])
			}
		}
	}
	inst.AppRunning = processRunning("MstyStudio") || processRunning("Msty Studio")
	inst.SidecarRunning = processRunning("MstySidecar")
	return inst
}

// processRunning checks for a process by name. pgrep is available on both
// macOS and Linux; on error we report not-running rather than failing the
// whole detection.
func processRunning(name string) bool {
	err := exec.Command("pgrep", "-if", name).Run()
	return err == nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
