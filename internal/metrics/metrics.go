package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics for the indicator engine.
type Metrics struct {
	// Indicator computation, labelled by indicator type
	Computations *prometheus.CounterVec
	ComputeDur   *prometheus.HistogramVec

	// Result cache, labelled by indicator type
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	StoreErrors *prometheus.CounterVec // labels: op=load|save

	// Aggregate builds
	BuildSymbols prometheus.Counter
	BuildDur     *prometheus.HistogramVec // labels: indicator

	// Circuit breaker around the Redis result store
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates the engine metrics and registers them with reg.
// A nil reg registers with the process-wide default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_computations_total",
			Help: "Full indicator computations performed (cache misses and uncached runs)",
		}, []string{"type"}),
		ComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indengine_compute_duration_seconds",
			Help:    "Indicator computation latency per symbol",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"type"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_cache_hits_total",
			Help: "Cached results reused because their index was fresh",
		}, []string{"type"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_cache_misses_total",
			Help: "Cached results absent or stale",
		}, []string{"type"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_store_errors_total",
			Help: "Result store failures by operation",
		}, []string{"op"}),

		BuildSymbols: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_build_symbols_total",
			Help: "Symbols processed by aggregate builds",
		}),
		BuildDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indengine_build_duration_seconds",
			Help:    "Aggregate build latency across all symbols",
			Buckets: prometheus.DefBuckets,
		}, []string{"indicator"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.Computations,
		m.ComputeDur,
		m.CacheHits,
		m.CacheMisses,
		m.StoreErrors,
		m.BuildSymbols,
		m.BuildDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	Backend        string    `json:"backend"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastBuildAt    time.Time `json:"last_build_at"`
	LastBuildErr   string    `json:"last_build_error"`
	Indicators     []string  `json:"indicators"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status for the given result backend.
func NewHealthStatus(backend string) *HealthStatus {
	return &HealthStatus{
		Backend:   backend,
		StartedAt: time.Now(),
	}
}

// RecordBuild stores the outcome of the latest aggregate build.
func (h *HealthStatus) RecordBuild(names []string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastBuildAt = time.Now()
	h.Indicators = names
	h.LastBuildErr = ""
	if err != nil {
		h.LastBuildErr = err.Error()
	}
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the quote database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil dependencies are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	check()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if h.Backend == "redis" && !h.RedisConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if h.LastBuildErr != "" {
		overallStatus = "degraded"
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		Backend         string   `json:"backend"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		LastBuildAt     string   `json:"last_build_at"`
		LastBuildErr    string   `json:"last_build_error,omitempty"`
		Indicators      []string `json:"indicators"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		Backend:         h.Backend,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastBuildAt:     h.LastBuildAt.Format(time.RFC3339),
		LastBuildErr:    h.LastBuildErr,
		Indicators:      h.Indicators,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics, /healthz and any extra routes.
type Server struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics and health server. gatherer selects the registry
// served on /metrics; nil serves the default registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer, logger *zap.Logger, routes map[string]http.HandlerFunc) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}

	return &Server{
		addr:   addr,
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
