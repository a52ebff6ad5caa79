package server

import (
	"errors"
	"net/http"

	"github.com/visara/reading-engine/internal/generation"
	"github.com/visara/reading-engine/internal/jobs"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, jobs.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrTokenMismatch):
		return http.StatusForbidden
	case errors.Is(err, jobs.ErrSubjectNotConfirmed), errors.Is(err, jobs.ErrAccountRequired):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrSubjectLocked):
		return http.StatusLocked
	case errors.Is(err, jobs.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	}

	switch generation.CodeOf(err) {
	case generation.CodeImageInvalid:
		return http.StatusUnprocessableEntity
	case generation.CodeTimeout:
		return http.StatusGatewayTimeout
	case generation.CodeCreditCheckFailed, generation.CodeCreditDeductFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
