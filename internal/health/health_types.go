// Package health builds the process snapshot served by GET /api/health.
package health

// Snapshot is the health report.
type Snapshot struct {
	Status              string      `json:"status"`
	Message             string      `json:"message"`
	AIGatewayConfigured bool        `json:"aiGatewayConfigured"`
	NotionConfigured    bool        `json:"notionConfigured"`
	Provider            string      `json:"provider,omitempty"`
	Model               string      `json:"model,omitempty"`
	UptimeSeconds       int64       `json:"uptimeSeconds"`
	Goroutines          int         `json:"goroutines"`
	Memory              MemoryInfo  `json:"memory"`
	Runtime             RuntimeInfo `json:"runtime"`
	SystemPrompt        *FileInfo   `json:"systemPrompt,omitempty"`
	Timestamp           string      `json:"timestamp"`
}

// MemoryInfo summarises runtime.MemStats.
type MemoryInfo struct {
	AllocMB      float64 `json:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB"`
	SysMB        float64 `json:"sysMB"`
	NumGC        uint32  `json:"numGC"`
}

// RuntimeInfo describes the Go runtime.
type RuntimeInfo struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	CPUs    int    `json:"cpus"`
}

// FileInfo describes a file the process depends on.
type FileInfo struct {
	Path          string `json:"path"`
	Exists        bool   `json:"exists"`
	FileSizeBytes int64  `json:"fileSizeBytes,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	Error         string `json:"error,omitempty"`
}
