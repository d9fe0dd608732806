package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RyadPasha/http-retryer/internal/observability"
	"go.uber.org/zap"
)

// FailoverDispatcher tries an ordered list of equivalent receiver endpoints
// and returns the first success. Failover between endpoints is immediate;
// inter-attempt backoff belongs to the retry engine, not here.
type FailoverDispatcher struct {
	sender    Sender
	endpoints []string
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewFailoverDispatcher(sender Sender, endpoints []string, logger *zap.Logger) (*FailoverDispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one receiver endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Own a copy so a caller mutating its slice cannot reorder failover.
	owned := make([]string, len(endpoints))
	copy(owned, endpoints)

	return &FailoverDispatcher{
		sender:    sender,
		endpoints: owned,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (d *FailoverDispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Dispatch posts the payload to each endpoint in list order, returning on
// the first success. When every endpoint fails, the last endpoint's error is
// returned; earlier failures surface only in the logs.
func (d *FailoverDispatcher) Dispatch(ctx context.Context, payload json.RawMessage) (*Response, error) {
	if d == nil || d.sender == nil {
		return nil, fmt.Errorf("dispatcher is not initialized")
	}

	var lastErr error
	for i, endpoint := range d.endpoints {
		sendStart := d.now()
		response, err := d.sender.Send(ctx, endpoint, payload)
		if d.metrics != nil {
			d.metrics.ObserveSendDuration(endpoint, d.now().Sub(sendStart))
		}
		if err == nil {
			return response, nil
		}

		lastErr = err
		if i < len(d.endpoints)-1 {
			if d.metrics != nil {
				d.metrics.IncFailover(endpoint)
			}
			d.logger.Warn("receiver failed, failing over to next endpoint",
				zap.String("endpoint", endpoint),
				zap.String("classification", Classification(err)),
				zap.Error(err),
			)
		}
	}

	return nil, lastErr
}

// Endpoints returns the dispatch order, first endpoint first.
func (d *FailoverDispatcher) Endpoints() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.endpoints))
	copy(out, d.endpoints)
	return out
}
