package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SequenceState represents the lifecycle state of a delivery sequence.
type SequenceState string

const (
	StateFresh     SequenceState = "FRESH"
	StateRetrying  SequenceState = "RETRYING"
	StateSucceeded SequenceState = "SUCCEEDED"
	StateAbandoned SequenceState = "ABANDONED"
)

func (s SequenceState) String() string { return string(s) }

func (s SequenceState) IsValid() bool {
	switch s {
	case StateFresh, StateRetrying, StateSucceeded, StateAbandoned:
		return true
	}
	return false
}

// IsTerminal reports whether no further attempts target the sequence.
func (s SequenceState) IsTerminal() bool {
	return s == StateSucceeded || s == StateAbandoned
}

const requestIDLength = 36

// DeliveryAttempt is the durable record of an in-flight delivery sequence.
// One row exists per sequence, keyed by RequestID, written lazily on the
// first failed attempt and removed on success.
type DeliveryAttempt struct {
	ID            uint
	RequestID     string
	AttemptNumber int
	LastError     *string
	Payload       json.RawMessage
	Abandoned     bool
	Origin        *string
	CreatedAt     time.Time
}

func (a *DeliveryAttempt) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: delivery attempt is nil", ErrValidation)
	}
	if len(strings.TrimSpace(a.RequestID)) != requestIDLength {
		return fmt.Errorf("%w: request id must be a %d-character UUID (got %q)", ErrValidation, requestIDLength, a.RequestID)
	}
	if a.AttemptNumber < 1 {
		return fmt.Errorf("%w: attempt number must be >= 1 (got %d)", ErrValidation, a.AttemptNumber)
	}
	if len(a.Payload) == 0 {
		return fmt.Errorf("%w: payload is required", ErrValidation)
	}
	if !json.Valid(a.Payload) {
		return fmt.Errorf("%w: payload must be valid JSON", ErrValidation)
	}
	return nil
}
