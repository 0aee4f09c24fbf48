// Package scheduler runs registry maintenance on a timer.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
)

// ErrInvalidConfig is returned when configuration is invalid
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// HealthChecker sweeps integration health. An empty id checks every enabled
// integration.
type HealthChecker interface {
	CheckIntegrationHealth(ctx context.Context, id string) (map[string]integration.Health, error)
}

// HealthSweepSchedulerConfig holds configuration for the health sweep scheduler
type HealthSweepSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is the time between two sweeps
	Interval time.Duration

	// SweepTimeout bounds a single sweep. Zero means Interval.
	SweepTimeout time.Duration

	// RunOnStart triggers a sweep immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultHealthSweepSchedulerConfig returns default configuration
func DefaultHealthSweepSchedulerConfig() HealthSweepSchedulerConfig {
	return HealthSweepSchedulerConfig{
		Enabled:    true,
		Interval:   time.Minute,
		RunOnStart: true,
	}
}

// HealthSweepScheduler periodically probes every enabled integration
type HealthSweepScheduler struct {
	checker   HealthChecker
	logger    *zap.Logger
	config    HealthSweepSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeps    int
	lastSweep time.Time
}

// NewHealthSweepScheduler creates a new health sweep scheduler
func NewHealthSweepScheduler(
	checker HealthChecker,
	logger *zap.Logger,
	config HealthSweepSchedulerConfig,
) (*HealthSweepScheduler, error) {
	if checker == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("health checker is required"))
	}
	if config.Enabled && config.Interval <= 0 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("interval must be positive"))
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = config.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthSweepScheduler{
		checker: checker,
		logger:  logger,
		config:  config,
	}, nil
}

// Start starts the sweep loop. It returns immediately.
func (s *HealthSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Health sweep scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Health sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("sweep_timeout", s.config.SweepTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight sweep until
// ctx is done
func (s *HealthSweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Health sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Health sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the sweep loop is active
func (s *HealthSweepScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Stats returns the number of completed sweeps and when the last one finished
func (s *HealthSweepScheduler) Stats() (sweeps int, lastSweep time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps, s.lastSweep
}

func (s *HealthSweepScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Health sweep loop stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one health check over every enabled integration
func (s *HealthSweepScheduler) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	start := time.Now()
	var results map[string]integration.Health
	var err error
	telemetry.WithProfilingLabels(sweepCtx, map[string]string{telemetry.ProfilingLabelOperation: "health_sweep"},
		func(ctx context.Context) {
			results, err = s.checker.CheckIntegrationHealth(ctx, "")
		})
	if err != nil {
		s.logger.Error("Health sweep failed", zap.Error(err))
		return
	}

	unhealthy := 0
	for id, h := range results {
		if h.Status != integration.HealthStatusHealthy {
			unhealthy++
			s.logger.Warn("Integration unhealthy",
				zap.String("integration_id", id),
				zap.String("status", h.Status.String()),
			)
		}
	}

	s.mu.Lock()
	s.sweeps++
	s.lastSweep = time.Now()
	s.mu.Unlock()

	s.logger.Debug("Health sweep completed",
		zap.Int("checked", len(results)),
		zap.Int("unhealthy", unhealthy),
		zap.Duration("duration", time.Since(start)),
	)
}
