package receiver

import (
	"context"
	"encoding/json"
)

// Sender is the outbound delivery port: one bounded-timeout POST to one URL.
type Sender interface {
	Send(ctx context.Context, url string, payload json.RawMessage) (*Response, error)
}

// Response stores receiver call metadata for audit and logging.
type Response struct {
	StatusCode int
	Body       string
}
