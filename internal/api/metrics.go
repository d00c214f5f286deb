package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/infrastructure/influxdb"
)

// DeviceMetrics represents the complete metrics response.
type DeviceMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	Registration  RegistrationStatus `json:"registration"`
	Resources     ResourceMetrics    `json:"resources"`
	Database      *DatabaseMetrics   `json:"database,omitempty"`
	Telemetry     *influxdb.Stats    `json:"telemetry,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// RegistrationStatus reports the device-management session.
type RegistrationStatus struct {
	Registered bool   `json:"registered"`
	Endpoint   string `json:"endpoint,omitempty"`
}

// ResourceMetrics counts registered resources.
type ResourceMetrics struct {
	Total      int `json:"total"`
	Observable int `json:"observable"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := DeviceMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Registration: s.registration(),
	}

	for _, res := range s.registry.List() {
		metrics.Resources.Total++
		if res.Observable() {
			metrics.Resources.Observable++
		}
	}

	if s.db != nil {
		stats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
			WaitCount:       stats.WaitCount,
		}
	}

	if s.telemetry != nil {
		stats := s.telemetry.Stats()
		metrics.Telemetry = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) registration() RegistrationStatus {
	if s.client == nil {
		return RegistrationStatus{}
	}
	return RegistrationStatus{
		Registered: s.client.IsRegisterCalled(),
		Endpoint:   s.client.Endpoint(),
	}
}
