package llm

import "fmt"

// ConfigError indicates the client has no usable credential or endpoint.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm config error: %s", e.Message)
}

// NetworkError indicates a transport-level failure reaching the provider.
type NetworkError struct {
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm network error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("llm network error: %s", e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// UpstreamError indicates the provider returned a non-success status.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm upstream error: status %d: %s", e.Status, e.Body)
}

// MalformedResponseError indicates the reply lacked the expected content field.
type MalformedResponseError struct {
	Message string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("llm malformed response: %s", e.Message)
}
