// Package apperr provides the error taxonomy shared by every generation stage.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can decide between retrying the
// same stage, switching provider, or failing the run.
type Kind string

const (
	KindConfiguration Kind = "ConfigurationError"
	KindValidation    Kind = "ValidationError"
	KindProvider      Kind = "ProviderError"
	KindMalformed     Kind = "MalformedResponse"
	KindAnalysis      Kind = "AnalysisFailure"
	KindSlideRender   Kind = "SlideRenderError"
)

// ErrorCode is a stable machine-readable code.
type ErrorCode string

const (
	ErrCodeUnknownProvider       ErrorCode = "UNKNOWN_PROVIDER"
	ErrCodeProviderNotConfigured ErrorCode = "PROVIDER_NOT_CONFIGURED"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeProviderCallFailed    ErrorCode = "PROVIDER_CALL_FAILED"
	ErrCodeNoJSONObject          ErrorCode = "NO_JSON_OBJECT"
	ErrCodeInvalidJSON           ErrorCode = "INVALID_JSON"
	ErrCodeInvalidShape          ErrorCode = "INVALID_SHAPE"
	ErrCodeAnalysisFailed        ErrorCode = "ANALYSIS_FAILED"
	ErrCodeSlideRenderFailed     ErrorCode = "SLIDE_RENDER_FAILED"
)

// Error is the structured application error.
type Error struct {
	Kind      Kind      `json:"kind"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]: %s", e.Kind, e.Code, e.Message)
	if e.Provider != "" {
		fmt.Fprintf(&b, " (provider %s)", e.Provider)
	}
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same Kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// KindOf returns the outermost Kind found in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any error in err's chain has the given Kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// NewUnknownProviderError is returned before any network call is attempted.
func NewUnknownProviderError(provider string) *Error {
	return &Error{
		Kind:      KindConfiguration,
		Code:      ErrCodeUnknownProvider,
		Message:   "unknown model provider",
		Provider:  provider,
		Retryable: false,
	}
}

func NewProviderNotConfiguredError(provider, details string) *Error {
	return &Error{
		Kind:      KindConfiguration,
		Code:      ErrCodeProviderNotConfigured,
		Message:   "model provider is not configured",
		Details:   details,
		Provider:  provider,
		Retryable: false,
	}
}

// NewValidationError names the violated constraint in Details.
func NewValidationError(constraint string) *Error {
	return &Error{
		Kind:      KindValidation,
		Code:      ErrCodeInvalidRequest,
		Message:   "invalid request",
		Details:   constraint,
		Retryable: false,
	}
}

func NewProviderError(provider string, cause error) *Error {
	return &Error{
		Kind:      KindProvider,
		Code:      ErrCodeProviderCallFailed,
		Message:   "model provider call failed",
		Provider:  provider,
		Retryable: true,
		Cause:     cause,
	}
}

func NewNoJSONObjectError() *Error {
	return &Error{
		Kind:      KindMalformed,
		Code:      ErrCodeNoJSONObject,
		Message:   "no JSON object found in model output",
		Retryable: true,
	}
}

func NewInvalidJSONError(cause error) *Error {
	return &Error{
		Kind:      KindMalformed,
		Code:      ErrCodeInvalidJSON,
		Message:   "model output is not valid JSON",
		Retryable: true,
		Cause:     cause,
	}
}

func NewInvalidShapeError(details string) *Error {
	return &Error{
		Kind:      KindMalformed,
		Code:      ErrCodeInvalidShape,
		Message:   "model output has an invalid structure",
		Details:   details,
		Retryable: true,
	}
}

// NewAnalysisError wraps any failure raised during prompt analysis.
func NewAnalysisError(cause error) *Error {
	retryable := false
	var inner *Error
	if errors.As(cause, &inner) {
		retryable = inner.Retryable
	}
	return &Error{
		Kind:      KindAnalysis,
		Code:      ErrCodeAnalysisFailed,
		Message:   "could not understand the prompt",
		Retryable: retryable,
		Cause:     cause,
	}
}

// NewSlideRenderError reports the slide indices whose render failed.
func NewSlideRenderError(failed []int, first error) *Error {
	return &Error{
		Kind:      KindSlideRender,
		Code:      ErrCodeSlideRenderFailed,
		Message:   fmt.Sprintf("%d slide(s) failed to render", len(failed)),
		Details:   fmt.Sprintf("indices: %v", failed),
		Retryable: true,
		Cause:     first,
	}
}
