package usecase

import (
	"context"
	"sync"

	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

// PolicySynchronizer holds the current trading policy. The store subscription
// replaces the snapshot wholesale on every remote change; readers never
// observe a partially applied update. Until the first snapshot arrives, the
// disabled default is served, so execution fails closed.
type PolicySynchronizer struct {
	store domain.PolicyStore
	log   *zap.Logger

	mu      sync.RWMutex
	current *domain.TradingConfig

	cancelWatch func()
	stopOnce    sync.Once
}

func NewPolicySynchronizer(store domain.PolicyStore, log *zap.Logger) *PolicySynchronizer {
	return &PolicySynchronizer{
		store: store,
		log:   log,
	}
}

// Current returns the most recently delivered snapshot.
func (s *PolicySynchronizer) Current() domain.TradingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return domain.DefaultTradingConfig()
	}
	return *s.current
}

// Load performs a point read to seed the snapshot. A store failure leaves the
// synchronizer on the fail-closed default.
func (s *PolicySynchronizer) Load(ctx context.Context) {
	cfg, err := s.store.GetTradingConfig(ctx)
	if err != nil {
		s.log.Error("Failed to load trading config, staying on default", zap.Error(err))
		return
	}
	s.apply(cfg)
	s.log.Info("Trading config loaded")
}

// Start subscribes to remote changes. Each delivered snapshot replaces the
// current one atomically.
func (s *PolicySynchronizer) Start(ctx context.Context) error {
	cancel, err := s.store.WatchTradingConfig(ctx, func(cfg domain.TradingConfig) {
		s.apply(cfg)
		s.log.Info("Trading config updated in real-time",
			zap.Bool("is_enabled", cfg.IsEnabled),
			zap.Float64("max_position_size", cfg.MaxPositionSize),
			zap.Float64("risk_percentage", cfg.RiskPercentage))
	})
	if err != nil {
		return err
	}
	s.cancelWatch = cancel
	return nil
}

// Update applies a partial change to the stored policy. The new snapshot
// arrives through the subscription, not synchronously.
func (s *PolicySynchronizer) Update(ctx context.Context, update domain.PolicyUpdate) error {
	return s.store.UpdateTradingConfig(ctx, update)
}

// Stop cancels the subscription. Safe to call more than once.
func (s *PolicySynchronizer) Stop() {
	s.stopOnce.Do(func() {
		if s.cancelWatch != nil {
			s.cancelWatch()
			s.log.Info("Stopped trading config subscription")
		}
	})
}

func (s *PolicySynchronizer) apply(cfg domain.TradingConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &cfg
}
