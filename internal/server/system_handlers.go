package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/advisor/internal/database"
	"github.com/aristath/advisor/internal/modules/universe"
	"github.com/aristath/advisor/internal/scheduler"
)

// MarketData is the slice of the universe service the system surface
// uses. *universe.Service satisfies it.
type MarketData interface {
	Reload(dir string) (*universe.ImportResult, error)
	LastImportedAt() (*time.Time, error)
	Coverage() ([]universe.Coverage, error)
}

// CacheState reports and clears the statistics cache.
type CacheState interface {
	Count() (int, error)
	InvalidateAll() error
}

// SystemHandlers serves the operational endpoints: manual data reload
// and the status snapshot the dashboard polls.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	market      MarketData
	cache       CacheState
	sched       *scheduler.Scheduler // nil when background jobs are disabled
	databases   []*database.DB
	historyPath string
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	market MarketData,
	cache CacheState,
	sched *scheduler.Scheduler,
	databases []*database.DB,
	historyPath string,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now().UTC(),
		market:      market,
		cache:       cache,
		sched:       sched,
		databases:   databases,
		historyPath: historyPath,
	}
}

// HandleReload re-imports the raw data directory and invalidates the
// statistics cache. The cache is only touched after a successful
// import, so a failed reload keeps serving the previous figures.
// POST /api/system/reload
func (h *SystemHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.dataDir == "" {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no data directory configured",
		})
		return
	}

	h.log.Info().Str("dir", h.dataDir).Msg("Manual market data reload triggered")

	result, err := h.market.Reload(h.dataDir)
	if err != nil {
		h.log.Error().Err(err).Msg("Market data reload failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "reload market data: " + err.Error(),
		})
		return
	}

	if err := h.cache.InvalidateAll(); err != nil {
		h.log.Error().Err(err).Msg("Failed to invalidate statistics cache after reload")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "invalidate statistics cache: " + err.Error(),
		})
		return
	}

	h.log.Info().
		Int("files", result.Files).
		Int("rows", result.Rows).
		Int("skipped_rows", result.SkippedRows).
		Msg("Market data reloaded")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"files":        result.Files,
		"rows":         result.Rows,
		"skipped_rows": result.SkippedRows,
	})
}

// HandleStatus returns the application and host status snapshot.
// GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cpuPercent, ramPercent := h.getSystemStats()

	response := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
		"host": map[string]interface{}{
			"cpu_percent": cpuPercent,
			"ram_percent": ramPercent,
		},
		"data":      h.dataStatus(),
		"cache":     h.cacheStatus(),
		"scheduler": h.schedulerStatus(),
		"databases": h.databaseStatus(),
	}

	if usage, err := disk.Usage(h.diskPath()); err == nil {
		host := response["host"].(map[string]interface{})
		host["disk_used_percent"] = usage.UsedPercent
		host["disk_free_bytes"] = usage.Free
	} else {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	}

	h.writeJSON(w, http.StatusOK, response)
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sampling interval so the status call stays fast while
// still giving a real reading.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) diskPath() string {
	if h.dataDir != "" {
		return h.dataDir
	}
	return "/"
}

func (h *SystemHandlers) dataStatus() map[string]interface{} {
	status := map[string]interface{}{
		"data_dir": h.dataDir,
	}

	if last, err := h.market.LastImportedAt(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read last import time")
	} else if last != nil {
		status["last_imported_at"] = last.Format(time.RFC3339)
	}

	coverage, err := h.market.Coverage()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read price coverage")
		return status
	}

	observations := 0
	var first, last time.Time
	for _, c := range coverage {
		observations += c.Observations
		if first.IsZero() || c.FirstDate.Before(first) {
			first = c.FirstDate
		}
		if c.LastDate.After(last) {
			last = c.LastDate
		}
	}

	status["symbols"] = len(coverage)
	status["observations"] = observations
	if !first.IsZero() {
		status["first_date"] = first.Format("2006-01-02")
		status["last_date"] = last.Format("2006-01-02")
	}
	return status
}

func (h *SystemHandlers) cacheStatus() map[string]interface{} {
	entries, err := h.cache.Count()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count cache entries")
		return map[string]interface{}{"error": err.Error()}
	}
	return map[string]interface{}{"entries": entries}
}

func (h *SystemHandlers) schedulerStatus() map[string]interface{} {
	if h.sched == nil {
		return map[string]interface{}{"enabled": false}
	}
	return map[string]interface{}{
		"enabled": true,
		"jobs":    h.sched.Status(),
	}
}

func (h *SystemHandlers) databaseStatus() map[string]interface{} {
	status := make(map[string]interface{}, len(h.databases)+1)

	for _, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			status[db.Name()] = map[string]interface{}{"error": err.Error()}
			continue
		}
		status[db.Name()] = map[string]interface{}{
			"size_bytes":     stats.SizeBytes,
			"wal_size_bytes": stats.WALSizeBytes,
			"page_count":     stats.PageCount,
		}
	}

	if h.historyPath != "" {
		if info, err := os.Stat(h.historyPath); err == nil {
			status["history"] = map[string]interface{}{"size_bytes": info.Size()}
		}
	}

	return status
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
