package msty

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// HealthStatus is the overall verdict of a health check.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// HealthReport is the result of a full installation health analysis.
type HealthReport struct {
	Overall         HealthStatus   `json:"overall_status"`
	Database        DatabaseHealth `json:"database"`
	Storage         StorageHealth  `json:"storage"`
	ModelCache      CacheHealth    `json:"model_cache"`
	AppRunning      bool           `json:"app_running"`
	SidecarRunning  bool           `json:"sidecar_running"`
	Issues          []string       `json:"issues,omitempty"`
	Warnings        []string       `json:"warnings,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

type DatabaseHealth struct {
	Exists    bool    `json:"exists"`
	Path      string  `json:"path,omitempty"`
	SizeMB    float64 `json:"size_mb,omitempty"`
	WALSizeMB float64 `json:"wal_size_mb,omitempty"`
	Integrity string  `json:"integrity,omitempty"`
}

type StorageHealth struct {
	DataDir     string  `json:"data_dir,omitempty"`
	DataSizeMB  float64 `json:"data_size_mb,omitempty"`
	DiskFreeGB  float64 `json:"disk_free_gb,omitempty"`
	DiskTotalGB float64 `json:"disk_total_gb,omitempty"`
	DiskUsedPct float64 `json:"disk_used_pct,omitempty"`
}

type CacheHealth struct {
	Path        string  `json:"path,omitempty"`
	ModelCount  int     `json:"model_count"`
	TotalSizeGB float64 `json:"total_size_gb"`
}

// CheckHealth analyses the installation and returns a report with
// recommendations. It never modifies anything.
func CheckHealth() *HealthReport {
	inst := DetectInstallation()
	rep := &HealthReport{
		Overall:        HealthHealthy,
		AppRunning:     inst.AppRunning,
		SidecarRunning: inst.SidecarRunning,
		Timestamp:      time.Now().UTC(),
	}

	if !inst.Installed {
		rep.Overall = HealthCritical
		rep.Issues = append(rep.Issues, "application not installed")
		rep.Recommendations = append(rep.Recommendations, "Install Msty Studio Desktop from https://msty.ai")
		return rep
	}

	checkDatabase(rep, inst.Paths)
	checkStorage(rep, inst.Paths)
	checkModelCache(rep, inst.Paths)

	if !inst.SidecarRunning {
		rep.Warnings = append(rep.Warnings, "sidecar not running; model invocation and MCP tools will fail")
		rep.Recommendations = append(rep.Recommendations, "Start the sidecar: open -a MstySidecar")
	}

	switch {
	case len(rep.Issues) > 0:
		rep.Overall = HealthCritical
	case len(rep.Warnings) > 0:
		rep.Overall = HealthWarning
	}
	return rep
}

func checkDatabase(rep *HealthReport, p Paths) {
	if p.Database == "" {
		rep.Warnings = append(rep.Warnings, "application database not found; the app may not have been run yet")
		return
	}
	rep.Database.Exists = true
	rep.Database.Path = p.Database
	if info, err := os.Stat(p.Database); err == nil {
		rep.Database.SizeMB = float64(info.Size()) / (1024 * 1024)
	}
	if info, err := os.Stat(p.Database + "-wal"); err == nil {
		rep.Database.WALSizeMB = float64(info.Size()) / (1024 * 1024)
	}
	if rep.Database.SizeMB > 500 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("database is large (%.0f MB)", rep.Database.SizeMB))
	}
	if rep.Database.WALSizeMB > 100 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("WAL file is large (%.0f MB)", rep.Database.WALSizeMB))
		rep.Recommendations = append(rep.Recommendations, "Checkpoint the WAL: sqlite3 msty.db 'PRAGMA wal_checkpoint(FULL);'")
	}

	db, err := OpenReadOnly(p.Database)
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("could not open database: %v", err))
		return
	}
	defer db.Close()
	var integrity string
	if err := db.db.QueryRow("PRAGMA integrity_check").Scan(&integrity); err == nil {
		rep.Database.Integrity = integrity
		if integrity != "ok" {
			rep.Issues = append(rep.Issues, "database integrity check failed: "+integrity)
		}
	}
}

func checkStorage(rep *HealthReport, p Paths) {
	if p.Data == "" {
		return
	}
	rep.Storage.DataDir = p.Data
	rep.Storage.DataSizeMB = float64(dirSize(p.Data)) / (1024 * 1024)

	var st syscall.Statfs_t
	if err := syscall.Statfs(p.Data, &st); err == nil {
		total := float64(st.Blocks) * float64(st.Bsize)
		free := float64(st.Bavail) * float64(st.Bsize)
		rep.Storage.DiskTotalGB = total / (1 << 30)
		rep.Storage.DiskFreeGB = free / (1 << 30)
		if total > 0 {
			rep.Storage.DiskUsedPct = 100 * (total - free) / total
		}
		switch {
		case rep.Storage.DiskUsedPct > 90:
			rep.Issues = append(rep.Issues, fmt.Sprintf("disk space critically low (%.0f%% used)", rep.Storage.DiskUsedPct))
		case rep.Storage.DiskUsedPct > 80:
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("disk space getting low (%.0f%% used)", rep.Storage.DiskUsedPct))
		}
	}
}

func checkModelCache(rep *HealthReport, p Paths) {
	if p.MLXModels == "" {
		return
	}
	rep.ModelCache.Path = p.MLXModels
	entries, err := os.ReadDir(p.MLXModels)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			rep.ModelCache.ModelCount++
		}
	}
	rep.ModelCache.TotalSizeGB = float64(dirSize(p.MLXModels)) / (1 << 30)
	if rep.ModelCache.TotalSizeGB > 100 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("large model cache (%.1f GB)", rep.ModelCache.TotalSizeGB))
	}
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
