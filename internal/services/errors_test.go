package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"shelfmark/internal/services"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})
	if jsonErr == nil {
		t.Fatal("expected json error fixture")
	}

	cases := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"retryable marker", services.Wrap(services.ErrRetryable, "analysis", "complete", "llm call failed", errors.New("boom")), services.KindRetryable},
		{"non-retryable marker", services.Wrap(services.ErrNonRetryable, "extraction", "fetch", "bad url", nil), services.KindNonRetryable},
		{"wrapped marker", fmt.Errorf("outer: %w", services.Wrap(services.ErrRetryable, "", "", "", nil)), services.KindRetryable},
		{"http 429", &services.HTTPStatusError{StatusCode: 429}, services.KindRetryable},
		{"http 408", &services.HTTPStatusError{StatusCode: 408}, services.KindRetryable},
		{"http 409", &services.HTTPStatusError{StatusCode: 409}, services.KindRetryable},
		{"http 425", &services.HTTPStatusError{StatusCode: 425}, services.KindRetryable},
		{"http 503", &services.HTTPStatusError{StatusCode: 503}, services.KindRetryable},
		{"http 500", &services.HTTPStatusError{StatusCode: 500}, services.KindRetryable},
		{"http 404", &services.HTTPStatusError{StatusCode: 404}, services.KindNonRetryable},
		{"http 400", &services.HTTPStatusError{StatusCode: 400}, services.KindNonRetryable},
		{"http 401", &services.HTTPStatusError{StatusCode: 401}, services.KindNonRetryable},
		{"http 422", &services.HTTPStatusError{StatusCode: 422}, services.KindNonRetryable},
		{"wrapped http status", fmt.Errorf("fetch: %w", &services.HTTPStatusError{StatusCode: 502}), services.KindRetryable},
		{"context canceled", context.Canceled, services.KindRetryable},
		{"deadline exceeded", context.DeadlineExceeded, services.KindRetryable},
		{"net error", fakeNetError{}, services.KindRetryable},
		{"url error", &url.Error{Op: "Get", URL: "http://example.com", Err: errors.New("refused")}, services.KindRetryable},
		{"json syntax", jsonErr, services.KindRetryable},
		{"unknown error", errors.New("mystery"), services.KindNonRetryable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestWrapIncludesDetailAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := services.Wrap(services.ErrRetryable, "extraction", "fetch", "request failed", cause)
	if !errors.Is(err, services.ErrRetryable) {
		t.Fatal("expected wrapped error to match ErrRetryable")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped error to preserve cause")
	}
	for _, fragment := range []string{"extraction", "fetch", "request failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", errors.New("boom"))
	if !errors.Is(err, services.ErrRetryable) {
		t.Fatal("nil marker should default to retryable")
	}
}
