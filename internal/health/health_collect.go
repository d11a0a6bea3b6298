package health

import (
	"errors"
	"os"
	"runtime"
	"strings"
	"time"
)

// Options describes what the relay knows about its own configuration.
type Options struct {
	Provider         string
	Model            string
	GatewayReady     bool
	NotionReady      bool
	StartedAt        time.Time
	SystemPromptFile string
}

func (o Options) normalize() Options {
	o.Provider = strings.TrimSpace(o.Provider)
	o.Model = strings.TrimSpace(o.Model)
	o.SystemPromptFile = strings.TrimSpace(o.SystemPromptFile)
	return o
}

// Collect returns a health snapshot for the current process.
func Collect(opts Options) Snapshot {
	opts = opts.normalize()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Snapshot{
		Status:              "ok",
		Message:             "Chat relay is running",
		AIGatewayConfigured: opts.GatewayReady,
		NotionConfigured:    opts.NotionReady,
		Provider:            opts.Provider,
		Model:               opts.Model,
		Goroutines:          runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(mem.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if !opts.StartedAt.IsZero() {
		s.UptimeSeconds = int64(time.Since(opts.StartedAt).Seconds())
	}
	if !opts.GatewayReady {
		s.Status = "degraded"
		s.Message = "Upstream credential is not configured; chat requests will fail"
	}
	if opts.SystemPromptFile != "" {
		s.SystemPrompt = inspectFile(opts.SystemPromptFile)
	}

	return s
}

func inspectFile(path string) *FileInfo {
	info := &FileInfo{Path: path}

	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			info.Exists = false
			return info
		}
		info.Error = err.Error()
		return info
	}

	info.Exists = true
	info.FileSizeBytes = stat.Size()
	info.UpdatedAt = stat.ModTime().Format(time.RFC3339)
	return info
}
