package generation

import (
	"errors"
	"fmt"

	"github.com/visara/reading-engine/internal/llm"
)

// Code identifies a failure class reportable on a job record.
type Code string

// Failure codes
const (
	CodeConfigMissing      Code = "ConfigMissing"
	CodeNetworkFailure     Code = "NetworkFailure"
	CodeUpstreamError      Code = "UpstreamError"
	CodeMalformedResponse  Code = "MalformedResponse"
	CodeRefused            Code = "Refused"
	CodeParseError         Code = "ParseError"
	CodeIncompleteContent  Code = "IncompleteContent"
	CodeImageInvalid       Code = "ImageInvalid"
	CodeTimeout            Code = "Timeout"
	CodeCreditCheckFailed  Code = "CreditCheckFailed"
	CodeCreditDeductFailed Code = "CreditDeductFailed"
	CodeGenerationFailed   Code = "GenerationFailed"
)

// Image rejection reasons carried in the error data of CodeImageInvalid.
const (
	ReasonNotAPerson    = "not-a-person"
	ReasonLowConfidence = "low-confidence"
	ReasonAPIError      = "api-error"
)

// Error is a taxonomy-coded failure with optional structured data.
type Error struct {
	Code    Code
	Message string
	Data    map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a taxonomy error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithData attaches structured data and returns the error.
func (e *Error) WithData(key string, value any) *Error {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// WithCause attaches the underlying error and returns the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// CodeOf extracts the taxonomy code from err, defaulting to GenerationFailed.
func CodeOf(err error) Code {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return CodeGenerationFailed
}

// classifyTransport maps a model-client error onto the taxonomy. Content
// errors (refusals, parse failures) are classified by the pipelines, not
// here.
func classifyTransport(err error) *Error {
	var cfgErr *llm.ConfigError
	if errors.As(err, &cfgErr) {
		return NewError(CodeConfigMissing, cfgErr.Message).WithCause(err)
	}
	var netErr *llm.NetworkError
	if errors.As(err, &netErr) {
		return NewError(CodeNetworkFailure, netErr.Message).WithCause(err)
	}
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		return NewError(CodeUpstreamError, "provider returned an error").
			WithData("status", upErr.Status).WithCause(err)
	}
	var malErr *llm.MalformedResponseError
	if errors.As(err, &malErr) {
		return NewError(CodeMalformedResponse, malErr.Message).WithCause(err)
	}
	return NewError(CodeGenerationFailed, "model call failed").WithCause(err)
}

// retryableTransport reports whether a transport failure is worth one more
// immediate attempt inside the orchestrator.
func retryableTransport(err error) bool {
	var netErr *llm.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Status >= 500 || upErr.Status == 429
	}
	return false
}
