package handler

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/response"
)

const (
	metricsInterval = 7 * time.Second
	probeTimeout    = 2 * time.Second
)

// AttemptCounter reports how many attempts are held in memory.
type AttemptCounter interface {
	Len() int
}

// SystemHandler reports host, runtime and exam-load metrics.
type SystemHandler struct {
	rdb       *redis.Client
	attempts  AttemptCounter
	startTime time.Time
	procRoot  string
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. rdb may be nil.
func NewSystemHandler(rdb *redis.Client, attempts AttemptCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		attempts:  attempts,
		startTime: time.Now(),
		procRoot:  "/proc",
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemMetrics struct {
	Timestamp     int64  `json:"timestamp"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Uptime        string `json:"uptime"`

	// Host, zero when /proc is unavailable.
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemTotalBytes uint64  `json:"mem_total_bytes"`
	LoadAvg1      float64 `json:"load_avg_1"`
	LoadAvg5      float64 `json:"load_avg_5"`
	LoadAvg15     float64 `json:"load_avg_15"`

	// Process
	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heap_alloc"`
	NumGC       uint32 `json:"num_gc"`
	AppRSSBytes uint64 `json:"app_rss_bytes"`
	GoVersion   string `json:"go_version"`

	// Exams
	ActiveAttempts int   `json:"active_attempts"`
	StatsBacklog   int64 `json:"stats_backlog"`
	RedisReachable bool  `json:"redis_reachable"`
}

// SystemStatus godoc
// GET /api/v1/admin/system/status
// One metrics snapshot.
func (h *SystemHandler) SystemStatus(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"metrics": h.collect(c.Request.Context())})
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics  (Accept: text/event-stream)
// Pushes a "metrics" event on connect and then every few seconds.
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	if !strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		response.Fail(c, http.StatusNotAcceptable, response.ErrStreamingNotAllowed)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	h.log.Debug().Msg("Admin attached to system metrics")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	writeSSE(c, "metrics", h.collect(reqCtx))
	for {
		select {
		case <-reqCtx.Done():
			h.log.Debug().Msg("Admin detached from system metrics")
			return
		case <-ticker.C:
			writeSSE(c, "metrics", h.collect(reqCtx))
		}
	}
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	up := time.Since(h.startTime)
	m := systemMetrics{
		Timestamp:     time.Now().Unix(),
		UptimeSeconds: int64(up.Seconds()),
		Uptime:        up.Truncate(time.Second).String(),
		GoVersion:     runtime.Version(),
	}

	if mem, err := readKB(h.procRoot+"/meminfo", "MemTotal", "MemAvailable"); err == nil {
		m.MemTotalBytes = mem["MemTotal"]
		if avail := mem["MemAvailable"]; avail <= m.MemTotalBytes {
			m.MemUsedBytes = m.MemTotalBytes - avail
		}
	}
	if loads, err := readLoadAvg(h.procRoot + "/loadavg"); err == nil {
		m.LoadAvg1, m.LoadAvg5, m.LoadAvg15 = loads[0], loads[1], loads[2]
	}
	if status, err := readKB(h.procRoot+"/self/status", "VmRSS"); err == nil {
		m.AppRSSBytes = status["VmRSS"]
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.NumGC = ms.NumGC

	if h.attempts != nil {
		m.ActiveAttempts = h.attempts.Len()
	}
	if h.rdb != nil {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if n, err := h.rdb.LLen(pctx, config.WorkerKey.ResultStatsQueue).Result(); err == nil {
			m.StatsBacklog = n
			m.RedisReachable = true
		}
	}
	return m
}

// ─── /proc readers ──────────────────────────────────────────────────

// readKB reads "Key:   1234 kB" lines and returns the wanted keys in bytes.
func readKB(path string, keys ...string) (map[string]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	out := make(map[string]uint64, len(keys))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(out) < len(keys) {
		name, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok || !want[name] {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		if len(fields) > 1 && fields[1] == "kB" {
			v *= 1024
		}
		out[name] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New(path + ": no matching keys")
	}
	return out, nil
}

func readLoadAvg(path string) ([3]float64, error) {
	var loads [3]float64
	data, err := os.ReadFile(path)
	if err != nil {
		return loads, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return loads, errors.New(path + ": unexpected format")
	}
	for i := range loads {
		if loads[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
			return loads, err
		}
	}
	return loads, nil
}
