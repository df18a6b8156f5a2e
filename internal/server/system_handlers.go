package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/quantfold/tradewire/internal/database"
)

// SystemHandlers serves health and system status endpoints
type SystemHandlers struct {
	log      zerolog.Logger
	ledgerDB *database.DB
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(ledgerDB *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:      log.With().Str("handler", "system").Logger(),
		ledgerDB: ledgerDB,
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
}

// HandleHealth reports liveness, database reachability and system load
// GET /api/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	dbStatus := "ok"
	if err := h.ledgerDB.QuickCheck(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Ledger database health check failed")
		dbStatus = "unavailable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	cpuPercent, ramPercent := h.getSystemStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      status,
		"database":    dbStatus,
		"cpu_percent": cpuPercent,
		"ram_percent": ramPercent,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// Failures degrade to zero values rather than failing the health check.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuAvg := 0.0
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err == nil && len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		return cpuAvg, 0
	}

	return cpuAvg, memStat.UsedPercent
}
