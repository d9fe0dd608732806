package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/RyadPasha/http-retryer/internal/domain"
	"github.com/RyadPasha/http-retryer/internal/observability"
	"github.com/RyadPasha/http-retryer/internal/receiver"
	"github.com/RyadPasha/http-retryer/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 5
	backoffBase        = 2 * time.Second
)

// Dispatcher is the failover dispatch port: one delivery attempt across the
// ordered receiver list.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload json.RawMessage) (*receiver.Response, error)
}

// DeliveryService owns the attempt-count state machine: it drives the
// failover dispatcher across attempts, sleeps the exponential backoff
// between them, and writes the attempt ledger at the state transitions.
// Ledger failures are logged and swallowed so a storage outage degrades a
// sequence to in-memory retries instead of stopping delivery.
type DeliveryService struct {
	dispatcher  Dispatcher
	ledger      repository.AttemptLedger
	logger      *zap.Logger
	metrics     *observability.Metrics
	maxAttempts int
	origin      string

	newRequestID func() string
	sleep        func(ctx context.Context, d time.Duration) error

	wg sync.WaitGroup
}

func NewDeliveryService(
	dispatcher Dispatcher,
	ledger repository.AttemptLedger,
	maxAttempts int,
	origin string,
	logger *zap.Logger,
) (*DeliveryService, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("attempt ledger is required")
	}
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryService{
		dispatcher:   dispatcher,
		ledger:       ledger,
		logger:       logger,
		maxAttempts:  maxAttempts,
		origin:       origin,
		newRequestID: uuid.NewString,
		sleep:        sleepWithContext,
	}, nil
}

func (s *DeliveryService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// StartDelivery is the fire-and-forget entry point. All outcomes surface
// through logs and the ledger's abandoned rows, never through a return
// value.
func (s *DeliveryService) StartDelivery(payload json.RawMessage) {
	if s == nil {
		return
	}
	if len(payload) == 0 || !json.Valid(payload) {
		s.logger.Warn("dropping delivery with invalid payload")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.metrics != nil {
			s.metrics.IncDeliveryInFlight()
			defer s.metrics.DecDeliveryInFlight()
		}

		// Detached from the caller's context: the sequence outlives the
		// request that started it.
		s.Deliver(context.Background(), payload)
	}()
}

// Wait blocks until every in-flight sequence reaches a terminal state.
func (s *DeliveryService) Wait() {
	s.wg.Wait()
}

// Deliver runs a fresh delivery sequence to its terminal state and returns
// it. The sequence has no ledger row until its first failed attempt.
func (s *DeliveryService) Deliver(ctx context.Context, payload json.RawMessage) domain.SequenceState {
	return s.run(ctx, sequence{payload: payload, attempt: 1})
}

// Resume re-enters the retry ladder for a record recovered from the ledger,
// continuing the attempt count and backoff schedule where the crashed
// process left off. It never inserts and, on success, always deletes.
func (s *DeliveryService) Resume(ctx context.Context, rec domain.DeliveryAttempt) domain.SequenceState {
	return s.run(ctx, sequence{
		requestID: rec.RequestID,
		attempt:   rec.AttemptNumber + 1,
		payload:   rec.Payload,
		recovered: true,
	})
}

type sequence struct {
	requestID string
	attempt   int
	payload   json.RawMessage
	recovered bool
}

func (s *DeliveryService) run(ctx context.Context, seq sequence) domain.SequenceState {
	if ctx == nil {
		ctx = context.Background()
	}
	if seq.requestID != "" {
		ctx = observability.WithRequestID(ctx, seq.requestID)
	}

	for {
		_, dispatchErr := s.dispatcher.Dispatch(ctx, seq.payload)
		if s.metrics != nil {
			s.metrics.IncAttempt(dispatchErr == nil)
		}

		if dispatchErr == nil {
			return s.succeed(ctx, seq)
		}

		classification := receiver.Classification(dispatchErr)

		if seq.requestID == "" {
			seq.requestID = s.newRequestID()
			ctx = observability.WithRequestID(ctx, seq.requestID)
		}

		logger := observability.WithContextLogger(s.logger, ctx)

		if seq.attempt < s.maxAttempts {
			if seq.attempt == 1 && !seq.recovered {
				s.persistFirstFailure(ctx, seq, classification, false)
			}

			delay := backoffDelay(seq.attempt)
			logger.Warn("delivery attempt failed, retrying",
				zap.Int("attempt", seq.attempt),
				zap.Int("maxAttempts", s.maxAttempts),
				zap.String("classification", classification),
				zap.Duration("delay", delay),
				zap.Error(dispatchErr),
			)

			if err := s.sleep(ctx, delay); err != nil {
				// Process shutdown mid-sequence. The ledger row, when one
				// exists, is picked up by the next recovery scan.
				logger.Warn("delivery sequence interrupted during backoff",
					zap.Int("attempt", seq.attempt),
					zap.Error(err),
				)
				return domain.StateRetrying
			}

			seq.attempt++
			continue
		}

		return s.abandon(ctx, seq, classification, dispatchErr)
	}
}

func (s *DeliveryService) succeed(ctx context.Context, seq sequence) domain.SequenceState {
	logger := observability.WithContextLogger(s.logger, ctx)

	// A first-attempt success never touches the ledger: nothing was
	// inserted for the sequence.
	if seq.requestID != "" && (seq.attempt > 1 || seq.recovered) {
		if err := s.ledger.Delete(ctx, seq.requestID); err != nil {
			logger.Error("failed to delete ledger record after successful delivery",
				zap.Error(err),
			)
		}
	}

	logger.Info("delivery succeeded",
		zap.Int("attempt", seq.attempt),
		zap.Bool("recovered", seq.recovered),
	)
	if s.metrics != nil {
		s.metrics.IncDeliveryOutcome(observability.OutcomeSucceeded)
	}

	return domain.StateSucceeded
}

func (s *DeliveryService) abandon(ctx context.Context, seq sequence, classification string, dispatchErr error) domain.SequenceState {
	logger := observability.WithContextLogger(s.logger, ctx)

	if seq.attempt == 1 && !seq.recovered {
		// maxAttempts == 1: nothing was inserted and there is no retry to
		// come, so the row goes in already abandoned as an audit trail.
		s.persistFirstFailure(ctx, seq, classification, true)
	} else {
		if err := s.ledger.MarkAbandoned(ctx, seq.requestID, seq.attempt, classification); err != nil {
			logger.Error("failed to mark ledger record abandoned",
				zap.Int("attempt", seq.attempt),
				zap.Error(err),
			)
		}
	}

	logger.Error("delivery abandoned, retry budget exhausted",
		zap.Int("attempt", seq.attempt),
		zap.Int("maxAttempts", s.maxAttempts),
		zap.String("classification", classification),
		zap.Error(dispatchErr),
	)
	if s.metrics != nil {
		s.metrics.IncDeliveryOutcome(observability.OutcomeAbandoned)
	}

	return domain.StateAbandoned
}

func (s *DeliveryService) persistFirstFailure(ctx context.Context, seq sequence, classification string, abandoned bool) {
	rec := &domain.DeliveryAttempt{
		RequestID:     seq.requestID,
		AttemptNumber: seq.attempt,
		Payload:       seq.payload,
		Abandoned:     abandoned,
	}
	if classification != "" {
		rec.LastError = &classification
	}
	if s.origin != "" {
		origin := s.origin
		rec.Origin = &origin
	}

	if err := s.ledger.Insert(ctx, rec); err != nil {
		observability.WithContextLogger(s.logger, ctx).Error(
			"failed to insert ledger record, continuing with in-memory retries",
			zap.Error(err),
		)
	}
}

// backoffDelay is the pure exponential schedule: 2^attempt seconds, no
// jitter, no cap. Attempt 1 waits 2s, attempt 2 waits 4s, attempt 3 waits
// 8s.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return backoffBase << uint(attempt-1)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
