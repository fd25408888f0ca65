package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/aristath/sentinel-quant/internal/database"
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/httpapi"
	"github.com/aristath/sentinel-quant/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   []*database.DB
	scheduler   *scheduler.Scheduler
	jobs        map[string]scheduler.Job
	priceSource string
	breaker     func() string // Yahoo circuit breaker state, nil when Yahoo is unused
}

// NewSystemHandlers creates the system handlers. sched and breaker may be nil.
func NewSystemHandlers(log zerolog.Logger, databases []*database.DB, sched *scheduler.Scheduler, jobs map[string]scheduler.Job, priceSource string, breaker func() string) *SystemHandlers {
	if jobs == nil {
		jobs = make(map[string]scheduler.Job)
	}
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		databases:   databases,
		scheduler:   sched,
		jobs:        jobs,
		priceSource: priceSource,
		breaker:     breaker,
	}
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	Uptime        string           `json:"uptime"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Goroutines    int              `json:"goroutines"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	HeapAllocMB   float64          `json:"heap_alloc_mb"`
	PriceSource   string           `json:"price_source"`
	YahooBreaker  string           `json:"yahoo_breaker,omitempty"`
	Databases     []database.Stats `json:"databases"`
	Jobs          []string         `json:"jobs"`
}

// HandleHealth reports liveness. Any database failing its health check makes the
// server unhealthy.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			httpapi.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": db.Name(),
				"error":    err.Error(),
			}, h.log)
			return
		}
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"}, h.log)
}

// HandleSystemStatus returns process and host status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	uptime := time.Since(h.startupTime)
	response := SystemStatusResponse{
		Status:        "healthy",
		Uptime:        uptime.Truncate(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		HeapAllocMB:   float64(ms.HeapAlloc) / 1024 / 1024,
		PriceSource:   h.priceSource,
		Databases:     make([]database.Stats, 0, len(h.databases)),
		Jobs:          h.jobNames(),
	}
	if h.breaker != nil {
		response.YahooBreaker = h.breaker()
	}

	for _, db := range h.databases {
		stats, err := db.GetStats(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			response.Status = "degraded"
			continue
		}
		response.Databases = append(response.Databases, *stats)
	}

	httpapi.WriteData(w, http.StatusOK, response, h.log)
}

// getSystemStats calculates CPU and RAM usage percentages.
// The 100ms CPU sample keeps the endpoint responsive.
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

func (h *SystemHandlers) jobNames() []string {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleJobs lists the jobs that can be triggered
// GET /api/jobs
func (h *SystemHandlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	scheduled := []string{}
	if h.scheduler != nil {
		scheduled = h.scheduler.Jobs()
		sort.Strings(scheduled)
	}
	httpapi.WriteData(w, http.StatusOK, map[string]interface{}{
		"jobs":      h.jobNames(),
		"scheduled": scheduled,
	}, h.log)
}

// HandleTriggerJob runs a job immediately in the background
// POST /api/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		httpapi.WriteError(w, fmt.Errorf("%w: job %s", domain.ErrNotFound, name), h.log)
		return
	}

	go func() {
		var err error
		if h.scheduler != nil {
			err = h.scheduler.RunNow(job)
		} else {
			err = job.Run()
		}
		if err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		}
	}()

	httpapi.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"job":     name,
		"message": "Job triggered",
	}, h.log)
}
