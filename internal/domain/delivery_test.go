package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSequenceStateIsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state SequenceState
		want  bool
	}{
		{state: StateFresh, want: false},
		{state: StateRetrying, want: false},
		{state: StateSucceeded, want: true},
		{state: StateAbandoned, want: true},
	}

	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestDeliveryAttemptValidate(t *testing.T) {
	t.Parallel()

	valid := func() *DeliveryAttempt {
		return &DeliveryAttempt{
			RequestID:     "3f2ab6de-9c14-4aa7-91e2-8b21f0f3a771",
			AttemptNumber: 1,
			Payload:       json.RawMessage(`{"event":"signup"}`),
		}
	}

	tests := []struct {
		name    string
		mutate  func(a *DeliveryAttempt)
		wantErr bool
	}{
		{name: "valid", mutate: func(a *DeliveryAttempt) {}},
		{name: "short request id", mutate: func(a *DeliveryAttempt) { a.RequestID = "abc" }, wantErr: true},
		{name: "zero attempt number", mutate: func(a *DeliveryAttempt) { a.AttemptNumber = 0 }, wantErr: true},
		{name: "empty payload", mutate: func(a *DeliveryAttempt) { a.Payload = nil }, wantErr: true},
		{name: "malformed payload", mutate: func(a *DeliveryAttempt) { a.Payload = json.RawMessage(`{`) }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := valid()
			tt.mutate(a)

			err := a.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}

	var nilAttempt *DeliveryAttempt
	if err := nilAttempt.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() on nil = %v, want ErrValidation", err)
	}
}
