package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// GatewayError reports a failed call to a language model backend:
// network failure, timeout, quota, or a non-success status.
type GatewayError struct {
	Provider   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time
func (e *GatewayError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// MalformedResponseError reports a reply that does not satisfy the requested shape
type MalformedResponseError struct {
	Shape string
	Raw   string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Shape, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Reason names the shape and the first offending field, without schema
// locations or the raw reply
func (e *MalformedResponseError) Reason() string {
	var ve *jsonschema.ValidationError
	if !errors.As(e.Err, &ve) {
		return fmt.Sprintf("malformed %s response", e.Shape)
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field := ve.InstanceLocation
	if field == "" {
		field = "/"
	}
	return fmt.Sprintf("malformed %s response: %s: %s", e.Shape, field, ve.Message)
}

// Describe renders a language model failure for reports
func Describe(err error) string {
	var mre *MalformedResponseError
	if errors.As(err, &mre) {
		return mre.Reason()
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		if ge.Timeout() {
			return fmt.Sprintf("llm %s: timed out", ge.Provider)
		}
		if ge.StatusCode != 0 {
			return fmt.Sprintf("llm %s: status %d", ge.Provider, ge.StatusCode)
		}
		return fmt.Sprintf("llm %s: unavailable", ge.Provider)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	return err.Error()
}

func gatewayErr(provider string, status int, err error) error {
	return &GatewayError{Provider: provider, StatusCode: status, Err: err}
}
