package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/RyadPasha/http-retryer/internal/domain"
	"go.uber.org/zap"
)

type fakeResumer struct {
	resumeFn func(ctx context.Context, rec domain.DeliveryAttempt) domain.SequenceState
	resumed  []domain.DeliveryAttempt
}

func (f *fakeResumer) Resume(ctx context.Context, rec domain.DeliveryAttempt) domain.SequenceState {
	f.resumed = append(f.resumed, rec)
	if f.resumeFn != nil {
		return f.resumeFn(ctx, rec)
	}
	return domain.StateSucceeded
}

type fakeLocker struct {
	acquireFn func(ctx context.Context) (bool, error)
	released  bool
}

func (f *fakeLocker) Acquire(ctx context.Context) (bool, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx)
	}
	return true, nil
}

func (f *fakeLocker) Release(_ context.Context) error {
	f.released = true
	return nil
}

func TestRecoveryScanResumesEachPendingRecord(t *testing.T) {
	t.Parallel()

	pending := []domain.DeliveryAttempt{
		{RequestID: "req-1", AttemptNumber: 2, Payload: json.RawMessage(`{"a":1}`)},
		{RequestID: "req-2", AttemptNumber: 4, Payload: json.RawMessage(`{"b":2}`)},
	}
	ledger := &fakeLedger{
		listPendingFn: func(_ context.Context) ([]domain.DeliveryAttempt, error) {
			return pending, nil
		},
	}
	resumer := &fakeResumer{}

	scan, err := NewRecoveryScan(ledger, resumer, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRecoveryScan() error = %v", err)
	}

	if err := scan.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(resumer.resumed) != 2 {
		t.Fatalf("resumed = %d records, want 2", len(resumer.resumed))
	}
	if resumer.resumed[0].RequestID != "req-1" || resumer.resumed[1].RequestID != "req-2" {
		t.Fatalf("resumed order = %v, want sequential oldest-first", resumer.resumed)
	}
	if resumer.resumed[0].AttemptNumber != 2 {
		t.Fatalf("resumed attempt number = %d, want stored value 2", resumer.resumed[0].AttemptNumber)
	}
}

func TestRecoveryScanEmptyLedger(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{}
	resumer := &fakeResumer{}

	scan, err := NewRecoveryScan(ledger, resumer, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRecoveryScan() error = %v", err)
	}

	if err := scan.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(resumer.resumed) != 0 {
		t.Fatalf("resumed = %d, want 0", len(resumer.resumed))
	}
}

func TestRecoveryScanListFailure(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{
		listPendingFn: func(_ context.Context) ([]domain.DeliveryAttempt, error) {
			return nil, errors.New("db unavailable")
		},
	}

	scan, err := NewRecoveryScan(ledger, &fakeResumer{}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRecoveryScan() error = %v", err)
	}

	if err := scan.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error when the ledger scan fails")
	}
}

func TestRecoveryScanSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{
		listPendingFn: func(_ context.Context) ([]domain.DeliveryAttempt, error) {
			t.Error("ListPending should not run without the lock")
			return nil, nil
		},
	}
	locker := &fakeLocker{
		acquireFn: func(_ context.Context) (bool, error) { return false, nil },
	}

	scan, err := NewRecoveryScan(ledger, &fakeResumer{}, locker, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRecoveryScan() error = %v", err)
	}

	if err := scan.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if locker.released {
		t.Fatal("a lock that was never acquired must not be released")
	}
}

func TestRecoveryScanReleasesLock(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{
		listPendingFn: func(_ context.Context) ([]domain.DeliveryAttempt, error) {
			return []domain.DeliveryAttempt{
				{RequestID: "req-1", AttemptNumber: 1, Payload: json.RawMessage(`{}`)},
			}, nil
		},
	}
	locker := &fakeLocker{}

	scan, err := NewRecoveryScan(ledger, &fakeResumer{}, locker, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRecoveryScan() error = %v", err)
	}

	if err := scan.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !locker.released {
		t.Fatal("lock should be released after the scan")
	}
}

func TestRecoveryScanStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	ledger := &fakeLedger{
		listPendingFn: func(_ context.Context) ([]domain.DeliveryAttempt, error) {
			return []domain.DeliveryAttempt{
				{RequestID: "req-1", AttemptNumber: 1, Payload: json.RawMessage(`{}`)},
				{RequestID: "req-2", AttemptNumber: 1, Payload: json.RawMessage(`{}`)},
			}, nil
		},
	}
	resumer := &fakeResumer{
		resumeFn: func(_ context.Context, _ domain.DeliveryAttempt) domain.SequenceState {
			cancel()
			return domain.StateSucceeded
		},
	}

	scan, err := NewRecoveryScan(ledger, resumer, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRecoveryScan() error = %v", err)
	}

	if err := scan.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(resumer.resumed) != 1 {
		t.Fatalf("resumed = %d, want scan interrupted after 1", len(resumer.resumed))
	}
}
