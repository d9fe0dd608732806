package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSendTimeout = 5 * time.Second

// HTTPSender posts JSON payloads to a receiver endpoint using a shared
// resty client. Retries are owned by the caller, never by the client.
type HTTPSender struct {
	client *resty.Client
}

func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &HTTPSender{client: client}
}

func NewHTTPSenderWithClient(client *resty.Client) (*HTTPSender, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPSender{client: client}, nil
}

func (s *HTTPSender) Send(ctx context.Context, endpoint string, payload json.RawMessage) (*Response, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("sender is not initialized")
	}

	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("receiver endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid receiver endpoint: %w", err)
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody([]byte(payload)).
		Post(trimmed)
	if err != nil {
		return nil, &SendError{
			Code:    transportCode(err),
			URL:     trimmed,
			Message: "receiver request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return nil, &SendError{
			Code:    CodeUnknown,
			URL:     trimmed,
			Message: "receiver returned empty response",
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Response{
			StatusCode: statusCode,
			Body:       responseBody,
		}, nil
	}

	return nil, &SendError{
		StatusCode: statusCode,
		URL:        trimmed,
		Message:    statusErrorMessage(statusCode, responseBody),
	}
}

func transportCode(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	return CodeNetwork
}

func statusErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("receiver returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
