package facade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/albardn2/karma-sub001/internal/config"
	"github.com/albardn2/karma-sub001/internal/idempotency"
	"github.com/albardn2/karma-sub001/internal/ledger"
	"github.com/albardn2/karma-sub001/internal/metrics"
	"github.com/albardn2/karma-sub001/internal/store"
	"github.com/albardn2/karma-sub001/internal/workflow"
)

// Open wires a Service from cfg. Metrics are registered with reg when it is
// non-nil. A configured Redis address backs the idempotency guard; the
// connection is checked before Open returns.
func Open(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*Service, error) {
	st, err := store.Open(ctx, cfg.Database.Path, store.WithMaxRetries(cfg.Ledger.MaxRetries))
	if err != nil {
		return nil, err
	}

	policy := ledger.ShortfallAllow
	if cfg.Ledger.RejectShortfall {
		policy = ledger.ShortfallReject
	}
	l := ledger.NewService(ledger.WithShortfallPolicy(policy))
	e := workflow.NewEngine(l, workflow.WithTripCurrency(cfg.Workflow.TripCurrency))

	opts := []Option{WithMetrics(metrics.New(reg))}
	var closers []func() error
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			st.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		slog.Info("idempotency keys stored in redis", "addr", cfg.Redis.Addr)
		opts = append(opts, WithGuard(idempotency.NewRedisGuard(rdb, cfg.Redis.TTL)))
		closers = append(closers, rdb.Close)
	} else {
		opts = append(opts, WithGuard(idempotency.NewMemoryGuard(cfg.Redis.TTL)))
	}

	s := New(st, l, e, opts...)
	s.closers = append(closers, st.Close)
	return s, nil
}

// Close releases the store and any Redis connection.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
