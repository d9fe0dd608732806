package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Failure classification codes stored in the ledger's error column when no
// HTTP status is available.
const (
	CodeTimeout = "timeout"
	CodeNetwork = "network"
	CodeUnknown = "unknown"
)

// SendError classifies a failed receiver call by HTTP status or transport
// error code.
type SendError struct {
	StatusCode int
	Code       string
	URL        string
	Message    string
	Cause      error
}

func (e *SendError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "send error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	} else if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *SendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Classification maps an error to the value stored in the ledger's error
// column: the decimal HTTP status when one was received, a transport error
// code otherwise.
func Classification(err error) string {
	if err == nil {
		return ""
	}

	var sendErr *SendError
	if errors.As(err, &sendErr) {
		if sendErr.StatusCode > 0 {
			return strconv.Itoa(sendErr.StatusCode)
		}
		if sendErr.Code != "" {
			return sendErr.Code
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CodeTimeout
		}
		return CodeNetwork
	}

	return CodeUnknown
}
