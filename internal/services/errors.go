package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrRetryable marks transient failures that are safe to reattempt.
	ErrRetryable = errors.New("retryable failure")
	// ErrNonRetryable marks permanent failures that reattempting cannot fix.
	ErrNonRetryable = errors.New("non-retryable failure")
)

// Kind is the two-way classification governing whether a queue message is
// requeued or terminally failed.
type Kind string

const (
	KindRetryable    Kind = "retryable"
	KindNonRetryable Kind = "non_retryable"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrRetryable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatusError carries an HTTP status code through the error chain so the
// classifier can apply the status-based retry policy.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// Classify maps an arbitrary stage error onto the retry taxonomy.
//
// Explicit markers pass through. HTTP-shaped errors retry on 408, 409, 425,
// 429, and 5xx; every other status is permanent. Cancellations, timeouts, and
// generic network or decode errors are treated as transient. Anything
// unrecognized fails closed as non-retryable so unknown errors never loop
// forever.
func Classify(err error) Kind {
	if err == nil {
		return KindNonRetryable
	}
	if errors.Is(err, ErrRetryable) {
		return KindRetryable
	}
	if errors.Is(err, ErrNonRetryable) {
		return KindNonRetryable
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindRetryable
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindRetryable
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindRetryable
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return KindRetryable
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return KindRetryable
	}

	return KindNonRetryable
}

// IsRetryable reports whether the workflow manager should requeue the message
// that produced err.
func IsRetryable(err error) bool {
	return Classify(err) == KindRetryable
}

func classifyStatus(status int) Kind {
	switch status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooEarly, http.StatusTooManyRequests:
		return KindRetryable
	}
	if status >= http.StatusInternalServerError {
		return KindRetryable
	}
	return KindNonRetryable
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
