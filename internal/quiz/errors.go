package quiz

import (
	"errors"
	"fmt"
)

// ErrorKind classifies step and request failures.
type ErrorKind string

// Error kinds written into step records and API responses.
const (
	KindRender        ErrorKind = "render_error"
	KindSubmitNetwork ErrorKind = "submit_network_error"
	KindSubmitParse   ErrorKind = "submit_parse_error"
	KindPayloadSize   ErrorKind = "payload_too_large"
	KindValidation    ErrorKind = "validation_error"
	KindAuthorization ErrorKind = "authorization_error"
)

// ErrOverallTimeout is returned when the hard wrapper deadline fires before
// the orchestrator finishes on its own.
var ErrOverallTimeout = errors.New("processing timeout")

// RenderError reports a navigation timeout or browser-level failure.
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// SubmitNetworkError reports a failed POST to the submit endpoint.
type SubmitNetworkError struct {
	Endpoint string
	Err      error
}

func (e *SubmitNetworkError) Error() string {
	return fmt.Sprintf("submit to %s: %v", e.Endpoint, e.Err)
}

func (e *SubmitNetworkError) Unwrap() error { return e.Err }

// SubmitParseError reports a submission response that is not a JSON object.
type SubmitParseError struct {
	StatusCode int
	Err        error
}

func (e *SubmitParseError) Error() string {
	return fmt.Sprintf("parse submit response (status %d): %v", e.StatusCode, e.Err)
}

func (e *SubmitParseError) Unwrap() error { return e.Err }

// PayloadTooLargeError means the serialized payload exceeded the outgoing cap.
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload_too_large: %d bytes exceeds limit of %d", e.Size, e.Limit)
}

// ValidationError reports a malformed or incomplete request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthorizationError reports a secret mismatch.
type AuthorizationError struct{}

func (e *AuthorizationError) Error() string { return "invalid secret" }

// KindOf maps an error to the kind recorded in traces. Unknown errors map to
// an empty kind.
func KindOf(err error) ErrorKind {
	var (
		renderErr  *RenderError
		networkErr *SubmitNetworkError
		parseErr   *SubmitParseError
		sizeErr    *PayloadTooLargeError
		validErr   *ValidationError
		authErr    *AuthorizationError
	)
	switch {
	case errors.As(err, &renderErr):
		return KindRender
	case errors.As(err, &networkErr):
		return KindSubmitNetwork
	case errors.As(err, &parseErr):
		return KindSubmitParse
	case errors.As(err, &sizeErr):
		return KindPayloadSize
	case errors.As(err, &validErr):
		return KindValidation
	case errors.As(err, &authErr):
		return KindAuthorization
	default:
		return ""
	}
}

// NewStepError converts err into its trace form.
func NewStepError(err error) *StepError {
	if err == nil {
		return nil
	}
	return &StepError{Kind: KindOf(err), Message: err.Error()}
}
