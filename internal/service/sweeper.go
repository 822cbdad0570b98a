package service

import (
	"context"
	"sync"
	"time"

	"lupora-api/internal/repository"

	"go.uber.org/zap"
)

// Sweeper periodically deletes idle carts and expired idempotency keys.
type Sweeper struct {
	cartRepo        repository.CartRepository
	idempotencyRepo repository.IdempotencyRepository
	cartTTL         time.Duration
	interval        time.Duration
	now             func() time.Time
	log             *zap.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewSweeper(
	cartRepo repository.CartRepository,
	idempotencyRepo repository.IdempotencyRepository,
	cartTTL, interval time.Duration,
	log *zap.Logger,
) *Sweeper {
	return &Sweeper{
		cartRepo:        cartRepo,
		idempotencyRepo: idempotencyRepo,
		cartTTL:         cartTTL,
		interval:        interval,
		now:             time.Now,
		log:             log.Named("sweeper"),
		stop:            make(chan struct{}),
	}
}

// Start sweeps once immediately and then every interval until Stop or ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

// Sweep runs a single cleanup pass. Failures are logged and retried next pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	carts, err := s.cartRepo.DeleteIdleSince(ctx, now.Add(-s.cartTTL))
	if err != nil {
		s.log.Error("delete idle carts", zap.Error(err))
	} else if carts > 0 {
		s.log.Info("idle carts deleted", zap.Int64("count", carts))
	}

	keys, err := s.idempotencyRepo.DeleteExpired(ctx, now)
	if err != nil {
		s.log.Error("delete expired idempotency keys", zap.Error(err))
	} else if keys > 0 {
		s.log.Info("expired idempotency keys deleted", zap.Int64("count", keys))
	}
}
