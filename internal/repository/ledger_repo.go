package repository

import (
	"context"
	"strings"

	"github.com/RyadPasha/http-retryer/internal/domain"
	"gorm.io/gorm"
)

// AttemptLedger is the durable store of in-flight delivery sequences.
// Callers treat every write as best-effort: a storage outage degrades a
// sequence to in-memory retries, it never stops delivery.
type AttemptLedger interface {
	Insert(ctx context.Context, a *domain.DeliveryAttempt) error
	MarkAbandoned(ctx context.Context, requestID string, attempt int, errCode string) error
	Delete(ctx context.Context, requestID string) error
	ListPending(ctx context.Context) ([]domain.DeliveryAttempt, error)
	ListAbandoned(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error)
}

type GormAttemptLedger struct {
	db *gorm.DB
}

func NewGormAttemptLedger(db *gorm.DB) *GormAttemptLedger {
	return &GormAttemptLedger{db: db}
}

func (r *GormAttemptLedger) Insert(ctx context.Context, a *domain.DeliveryAttempt) error {
	if err := a.Validate(); err != nil {
		return err
	}

	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*a = *attemptModelToDomain(model)
	return nil
}

func (r *GormAttemptLedger) MarkAbandoned(ctx context.Context, requestID string, attempt int, errCode string) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryAttemptModel{}).
		Where("request_id = ?", requestID).
		Updates(map[string]any{
			"abandoned":      true,
			"attempt_number": attempt,
			"error":          errCode,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the sequence's row after a successful delivery. An empty
// requestID is a no-op: nothing was ever inserted for that sequence.
func (r *GormAttemptLedger) Delete(ctx context.Context, requestID string) error {
	if strings.TrimSpace(requestID) == "" {
		return nil
	}

	return r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Delete(&DeliveryAttemptModel{}).Error
}

// ListPending returns every non-abandoned row, oldest first. Used only by
// the recovery scan at process start.
func (r *GormAttemptLedger) ListPending(ctx context.Context) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("abandoned = ?", false).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return attemptsToDomain(models), nil
}

// ListAbandoned returns exhausted sequences, newest first, for operator
// inspection.
func (r *GormAttemptLedger) ListAbandoned(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error) {
	if limit < 1 {
		limit = 50
	}

	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("abandoned = ?", true).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return attemptsToDomain(models), nil
}

func attemptsToDomain(models []DeliveryAttemptModel) []domain.DeliveryAttempt {
	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts
}
