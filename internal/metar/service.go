package metar

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/sectional/pkg/logger"
)

// CycleSink receives every completed cycle. Implementations must not block
// for long; the snapshot persistence and websocket broadcast both satisfy it.
type CycleSink interface {
	PublishCycle(cycle *Cycle)
}

// ServiceConfig holds the refresh loop settings.
type ServiceConfig struct {
	RefreshInterval time.Duration
	CycleTimeout    time.Duration
}

// Service owns the periodic ingestion loop: it runs a pipeline cycle on an
// interval, keeps the latest cycle available behind a read lock, and hands
// each cycle to the configured sinks.
type Service struct {
	config   ServiceConfig
	pipeline *Pipeline
	sinks    []CycleSink
	logger   *logger.Logger

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	// latest has its own lock: cycle goroutines touch it while Stop holds mu
	// waiting for them.
	latest   *Cycle
	latestMu sync.RWMutex

	// Initial data readiness
	initialDataReady chan struct{}
	initialDataOnce  sync.Once
}

// NewService creates a new ingestion service.
func NewService(config ServiceConfig, pipeline *Pipeline, log *logger.Logger, sinks ...CycleSink) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:           config,
		pipeline:         pipeline,
		sinks:            sinks,
		logger:           log.Named("metar-service"),
		ctx:              ctx,
		cancel:           cancel,
		initialDataReady: make(chan struct{}),
	}
}

// Start begins the background refresh loop.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil // Already started
	}

	s.logger.Info("Starting METAR ingestion service",
		logger.Duration("refresh_interval", s.config.RefreshInterval),
		logger.Duration("cycle_timeout", s.config.CycleTimeout))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycleAndPublish()
		s.initialDataOnce.Do(func() {
			close(s.initialDataReady)
			s.logger.Info("Initial rating cycle completed")
		})
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.backgroundRefresh()
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts down the service, waiting for in-flight cycles.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil // Already stopped
	}

	s.logger.Info("Stopping METAR ingestion service")
	s.cancel()
	s.wg.Wait()
	s.started = false
	s.logger.Info("METAR ingestion service stopped")
	return nil
}

// IsStarted returns whether the service is currently running.
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// RefreshNow triggers an immediate cycle outside the regular interval.
func (s *Service) RefreshNow() {
	s.logger.Info("Manual rating refresh triggered")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycleAndPublish()
	}()
}

// Latest returns the most recent completed cycle, waiting briefly for the
// initial cycle right after startup. Returns nil when nothing has completed.
func (s *Service) Latest() *Cycle {
	select {
	case <-s.initialDataReady:
	case <-time.After(30 * time.Second):
		s.logger.Warn("Timeout waiting for initial rating cycle")
		return nil
	}

	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

// LatestNoWait returns the most recent cycle without blocking on startup.
func (s *Service) LatestNoWait() *Cycle {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

// backgroundRefresh runs the periodic cycle loop.
func (s *Service) backgroundRefresh() {
	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	s.logger.Info("Background rating refresh started",
		logger.Duration("interval", s.config.RefreshInterval))

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Background rating refresh stopped")
			return
		case <-ticker.C:
			s.logger.Debug("Periodic rating refresh triggered")
			s.runCycleAndPublish()
		}
	}
}

// runCycleAndPublish executes one bounded cycle, stores it as latest, and
// fans it out to the sinks.
func (s *Service) runCycleAndPublish() {
	ctx := s.ctx
	if s.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.config.CycleTimeout)
		defer cancel()
	}

	cycle := s.pipeline.RunCycle(ctx)

	s.latestMu.Lock()
	s.latest = cycle
	s.latestMu.Unlock()

	for _, sink := range s.sinks {
		sink.PublishCycle(cycle)
	}
}
