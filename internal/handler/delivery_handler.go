package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/RyadPasha/http-retryer/internal/domain"
	"github.com/RyadPasha/http-retryer/internal/repository"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultAttemptsLimit = 50
	maxAttemptsLimit     = 500
)

// DeliveryStarter is the fire-and-forget intake port.
type DeliveryStarter interface {
	StartDelivery(payload json.RawMessage)
}

type DeliveryHandler struct {
	starter DeliveryStarter
	ledger  repository.AttemptLedger
}

func NewDeliveryHandler(starter DeliveryStarter, ledger repository.AttemptLedger) (*DeliveryHandler, error) {
	if starter == nil {
		return nil, fmt.Errorf("delivery starter is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("attempt ledger is required")
	}
	return &DeliveryHandler{starter: starter, ledger: ledger}, nil
}

func RegisterDeliveryRoutes(router fiber.Router, starter DeliveryStarter, ledger repository.AttemptLedger) error {
	h, err := NewDeliveryHandler(starter, ledger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/deliveries", h.CreateDelivery)
	v1.Get("/attempts", h.ListAttempts)

	return nil
}

type attemptResponse struct {
	RequestID     string          `json:"requestId"`
	AttemptNumber int             `json:"attemptNumber"`
	Error         *string         `json:"error,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Abandoned     bool            `json:"abandoned"`
	Hostname      *string         `json:"hostname,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// CreateDelivery accepts an arbitrary JSON payload and starts a delivery
// sequence for it. The response acknowledges receipt only; terminal
// outcomes surface through logs and the ledger.
func (h *DeliveryHandler) CreateDelivery(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 || !json.Valid(body) {
		return fiber.NewError(fiber.StatusBadRequest, "request body must be valid JSON")
	}

	// Fiber reuses its buffers across requests; the sequence needs its own
	// copy of the payload.
	payload := make(json.RawMessage, len(body))
	copy(payload, body)

	h.starter.StartDelivery(payload)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
	})
}

// ListAttempts exposes the ledger for operator inspection: abandoned rows by
// default, pending rows with ?abandoned=false.
func (h *DeliveryHandler) ListAttempts(c *fiber.Ctx) error {
	abandoned := true
	if raw := c.Query("abandoned"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "abandoned must be true or false")
		}
		abandoned = parsed
	}

	limit := defaultAttemptsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(parsed, maxAttemptsLimit)
	}

	var (
		attempts []domain.DeliveryAttempt
		err      error
	)
	if abandoned {
		attempts, err = h.ledger.ListAbandoned(c.Context(), limit)
	} else {
		attempts, err = h.ledger.ListPending(c.Context())
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list attempts")
	}

	data := make([]attemptResponse, 0, len(attempts))
	for i := range attempts {
		a := attempts[i]
		data = append(data, attemptResponse{
			RequestID:     a.RequestID,
			AttemptNumber: a.AttemptNumber,
			Error:         a.LastError,
			Payload:       a.Payload,
			Abandoned:     a.Abandoned,
			Hostname:      a.Origin,
			Timestamp:     a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":  data,
		"count": len(data),
	})
}
