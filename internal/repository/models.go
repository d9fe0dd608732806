package repository

import (
	"encoding/json"
	"time"

	"github.com/RyadPasha/http-retryer/internal/domain"
)

// DeliveryAttemptModel is the persistence model for the delivery_attempts
// table. Column names follow the operational schema: the error column holds
// an HTTP status or transport code, timestamp is the first persistence time.
type DeliveryAttemptModel struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	RequestID     string          `gorm:"column:request_id;type:varchar(36);not null;index:idx_delivery_attempts_request_id"`
	AttemptNumber int             `gorm:"column:attempt_number;not null"`
	LastError     *string         `gorm:"column:error;type:varchar(64)"`
	Payload       json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	Abandoned     bool            `gorm:"column:abandoned;not null;default:false"`
	Origin        *string         `gorm:"column:hostname;type:varchar(255)"`
	CreatedAt     time.Time       `gorm:"column:timestamp;autoCreateTime"`
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:            a.ID,
		RequestID:     a.RequestID,
		AttemptNumber: a.AttemptNumber,
		LastError:     a.LastError,
		Payload:       a.Payload,
		Abandoned:     a.Abandoned,
		Origin:        a.Origin,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:            m.ID,
		RequestID:     m.RequestID,
		AttemptNumber: m.AttemptNumber,
		LastError:     m.LastError,
		Payload:       m.Payload,
		Abandoned:     m.Abandoned,
		Origin:        m.Origin,
		CreatedAt:     m.CreatedAt,
	}
}
