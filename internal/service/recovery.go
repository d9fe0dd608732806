package service

import (
	"context"
	"fmt"

	"github.com/RyadPasha/http-retryer/internal/domain"
	"github.com/RyadPasha/http-retryer/internal/observability"
	"github.com/RyadPasha/http-retryer/internal/repository"
	"go.uber.org/zap"
)

// RecoveryLocker is a best-effort cross-process lock around the scan.
// Acquire returning (false, nil) means another replica is already
// recovering the shared ledger.
type RecoveryLocker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Resumer re-enters the retry ladder for a recovered record.
type Resumer interface {
	Resume(ctx context.Context, rec domain.DeliveryAttempt) domain.SequenceState
}

// RecoveryScan resubmits pending ledger records after a process restart. It
// is an explicit operation the surrounding service invokes once after its
// own readiness checks; records are processed sequentially, so a large
// backlog serializes behind its own backoff delays.
type RecoveryScan struct {
	ledger  repository.AttemptLedger
	engine  Resumer
	locker  RecoveryLocker
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewRecoveryScan(
	ledger repository.AttemptLedger,
	engine Resumer,
	locker RecoveryLocker,
	logger *zap.Logger,
) (*RecoveryScan, error) {
	if ledger == nil {
		return nil, fmt.Errorf("attempt ledger is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("delivery engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RecoveryScan{
		ledger: ledger,
		engine: engine,
		locker: locker,
		logger: logger,
	}, nil
}

func (r *RecoveryScan) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Run lists all pending records and resumes each from its last recorded
// attempt number. Per-record outcomes never stop the scan.
func (r *RecoveryScan) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if r.locker != nil {
		acquired, err := r.locker.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire recovery lock: %w", err)
		}
		if !acquired {
			r.logger.Info("recovery scan skipped, another replica holds the lock")
			return nil
		}
		defer func() {
			if err := r.locker.Release(ctx); err != nil {
				r.logger.Warn("failed to release recovery lock", zap.Error(err))
			}
		}()
	}

	pending, err := r.ledger.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending ledger records: %w", err)
	}

	if len(pending) == 0 {
		r.logger.Info("recovery scan found no pending deliveries")
		return nil
	}

	r.logger.Info("recovery scan resuming pending deliveries",
		zap.Int("count", len(pending)),
	)

	for i := range pending {
		rec := pending[i]
		if ctx.Err() != nil {
			r.logger.Warn("recovery scan interrupted",
				zap.Int("resumed", i),
				zap.Int("remaining", len(pending)-i),
			)
			return ctx.Err()
		}

		if r.metrics != nil {
			r.metrics.IncRecoveryResumed()
		}

		state := r.engine.Resume(ctx, rec)
		r.logger.Info("recovered delivery reached terminal state",
			zap.String("requestId", rec.RequestID),
			zap.Int("lastAttempt", rec.AttemptNumber),
			zap.String("state", state.String()),
		)
	}

	return nil
}
