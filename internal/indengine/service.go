// Package indengine wires configuration, quote source, result store and the
// caching indicator factory into a runnable service.
package indengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"screening-systemv1/config"
	"screening-systemv1/internal/indicator"
	"screening-systemv1/internal/logger"
	"screening-systemv1/internal/marketdata"
	"screening-systemv1/internal/metrics"
	"screening-systemv1/internal/model"
	"screening-systemv1/internal/screening"
	"screening-systemv1/internal/store/file"
	redisstore "screening-systemv1/internal/store/redis"
	sqlitestore "screening-systemv1/internal/store/sqlite"
)

// Service is the top-level orchestrator for the indicator engine.
type Service struct {
	cfg *config.Config
	log *zap.Logger

	reg    *prometheus.Registry
	prom   *metrics.Metrics
	health *metrics.HealthStatus

	source  model.QuoteSource
	results model.ResultStore
	builder *screening.Builder

	rdb     *goredis.Client
	sqlDB   *sql.DB
	closers []func() error

	// buildMu serialises aggregate builds; mu guards built.
	buildMu sync.Mutex
	mu      sync.RWMutex
	built   map[string]*screening.Indicator
}

// New opens the configured quote source and result store.
func New(cfg *config.Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	svc := newService(cfg, log)

	switch {
	case cfg.QuotesDB != "":
		r, err := sqlitestore.NewReader(cfg.QuotesDB)
		if err != nil {
			return nil, err
		}
		svc.source = r
		svc.sqlDB = r.DB()
		svc.closers = append(svc.closers, r.Close)
	case cfg.QuotesCSV != "":
		m, err := marketdata.LoadCSVFile(cfg.QuotesCSV)
		if err != nil {
			return nil, err
		}
		svc.source = m
	default:
		return nil, errors.New("indengine: no quote source configured (quotes_db or quotes_csv)")
	}

	switch cfg.Backend {
	case config.BackendRedis:
		rs, err := redisstore.New(cfg.Redis, log)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.instrumentBreaker(rs.Breaker())
		svc.results = rs
		svc.rdb = rs.Client()
		svc.closers = append(svc.closers, rs.Close)
	default:
		fs, err := file.New(cfg.CacheRoot)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.results = fs
	}

	svc.wire()
	return svc, nil
}

// NewWithDeps builds a service over an existing source and store.
func NewWithDeps(cfg *config.Config, source model.QuoteSource, results model.ResultStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	svc := newService(cfg, log)
	svc.source = source
	svc.results = results
	svc.wire()
	return svc
}

func newService(cfg *config.Config, log *zap.Logger) *Service {
	reg := prometheus.NewRegistry()
	return &Service{
		cfg:    cfg,
		log:    log,
		reg:    reg,
		prom:   metrics.NewMetrics(reg),
		health: metrics.NewHealthStatus(cfg.Backend),
		built:  map[string]*screening.Indicator{},
	}
}

func (svc *Service) wire() {
	factory := indicator.NewCachingFactory(svc.results,
		indicator.WithLogger(svc.log),
		indicator.WithMetrics(svc.prom),
	)
	svc.builder = screening.NewBuilder(factory, svc.source,
		screening.WithWorkers(svc.cfg.Workers),
		screening.WithLogger(svc.log),
		screening.WithMetrics(svc.prom),
	)
}

func (svc *Service) instrumentBreaker(cb *redisstore.CircuitBreaker) {
	logTransition := cb.OnStateChange
	cb.OnStateChange = func(from, to redisstore.State) {
		if logTransition != nil {
			logTransition(from, to)
		}
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.RedisCircuitBreakerTrips.Inc()
		}
	}
}

// Registry returns the registry the service's metrics are registered with.
func (svc *Service) Registry() *prometheus.Registry { return svc.reg }

// Run builds every configured indicator. When HTTPAddr is set it then serves
// /healthz, /metrics and POST /rebuild until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	svc.log.Info("indicator engine starting",
		zap.String("backend", svc.cfg.Backend),
		zap.Int("indicators", len(svc.cfg.Indicators)),
		zap.Int("workers", svc.cfg.Workers),
	)

	if _, err := svc.Build(ctx, svc.cfg.Indicators); err != nil {
		if svc.cfg.HTTPAddr == "" || errors.Is(err, context.Canceled) {
			return err
		}
		svc.log.Error("initial build failed", zap.Error(err))
	}
	if svc.cfg.HTTPAddr == "" {
		return nil
	}

	svc.health.StartLivenessChecker(ctx, svc.rdb, svc.sqlDB, 15*time.Second)
	srv := metrics.NewServer(svc.cfg.HTTPAddr, svc.health, svc.reg, svc.log, svc.routes())
	srv.Start()

	<-ctx.Done()
	svc.log.Info("shutdown signal received")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutCtx)
}

// Build runs specs in order under a fresh build ID and records the outcome
// in the health status. It stops at the first failing indicator.
func (svc *Service) Build(ctx context.Context, specs []config.IndicatorSpec) ([]*screening.Indicator, error) {
	svc.buildMu.Lock()
	defer svc.buildMu.Unlock()

	ctx = logger.WithBuildID(ctx, logger.NewBuildID())
	log := svc.log.With(logger.Fields(ctx)...)
	start := time.Now()

	var (
		out   []*screening.Indicator
		names []string
		err   error
	)
	for _, spec := range specs {
		var ind *screening.Indicator
		ind, err = svc.builder.BuildType(ctx, spec.Type, spec.Params)
		if err != nil {
			err = fmt.Errorf("build %s: %w", spec, err)
			break
		}
		out = append(out, ind)
		names = append(names, ind.Name)

		svc.mu.Lock()
		svc.built[ind.Name] = ind
		svc.mu.Unlock()
	}
	svc.health.RecordBuild(names, err)

	if err != nil {
		log.Error("build failed", zap.Strings("built", names), zap.Error(err))
		return nil, err
	}
	log.Info("build complete", zap.Strings("indicators", names), zap.Duration("took", time.Since(start)))
	return out, nil
}

// Indicator returns the latest build of the named indicator.
func (svc *Service) Indicator(name string) (*screening.Indicator, bool) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	ind, ok := svc.built[name]
	return ind, ok
}

// Close releases the quote source and result store.
func (svc *Service) Close() error {
	var errs []error
	for i := len(svc.closers) - 1; i >= 0; i-- {
		if err := svc.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	svc.closers = nil
	return errors.Join(errs...)
}
