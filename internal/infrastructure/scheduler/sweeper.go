package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pingboard/backend/internal/application/dispatch"
	"github.com/pingboard/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Sweeper runs the dispatch sweep on a fixed interval. Multiple instances
// can run against the same database; the claim locking in the repository
// keeps them from double-sending.
type Sweeper struct {
	config   config.DispatchConfig
	dispatch *dispatch.DispatchService
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweeper creates a new sweeper
func NewSweeper(cfg config.DispatchConfig, svc *dispatch.DispatchService, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		config:   cfg,
		dispatch: svc,
		logger:   logger,
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Dispatch sweeper started",
		zap.Duration("interval", s.config.SweepInterval),
		zap.Duration("late_tolerance", s.config.LateTolerance),
	)
	return nil
}

// Stop stops the sweep loop, waiting for an in-flight sweep to finish
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Dispatch sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop sweeps immediately, then on every tick
func (s *Sweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	defer cancel()

	result, err := s.dispatch.Sweep(sweepCtx, time.Now())
	if err != nil {
		s.logger.Error("Dispatch sweep failed", zap.Error(err))
		return
	}
	if result.Sent > 0 || result.Reminders > 0 {
		s.logger.Info("Dispatch sweep completed",
			zap.Int("sent", result.Sent),
			zap.Int("reminders", result.Reminders),
		)
	}
}
