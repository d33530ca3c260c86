package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pkoukos/stockfolio/internal/database"
)

// SystemHandlers handles health and system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(dataDir string, databases map[string]*database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
	}
}

// HandleHealth handles the public health check
// GET /api/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "stockfolio",
		"uptime":  time.Since(h.startupTime).Round(time.Second).String(),
	})
}

// HandleSystemStatus returns resource usage and database health. Admin only.
// GET /api/admin/system
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime": time.Since(h.startupTime).Round(time.Second).String(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		status["cpu_percent"] = round1(cpuPercent[0])
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		status["memory"] = map[string]interface{}{
			"used_percent": round1(memStat.UsedPercent),
			"total_mb":     memStat.Total / 1024 / 1024,
			"used_mb":      memStat.Used / 1024 / 1024,
		}
	}

	if diskStat, err := disk.Usage(h.dataDir); err == nil {
		status["disk"] = map[string]interface{}{
			"used_percent": round1(diskStat.UsedPercent),
			"free_mb":      diskStat.Free / 1024 / 1024,
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Full integrity check; this endpoint is admin-only and infrequent
	dbStatus := make(map[string]string, len(h.databases))
	healthy := true
	for name, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Database check failed")
			dbStatus[name] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			dbStatus[name] = "ok"
		}
	}
	status["databases"] = dbStatus

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
