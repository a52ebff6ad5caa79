package jobs

import "errors"

// Sentinel errors surfaced to the HTTP layer.
var (
	// ErrJobNotFound means no job exists for the given id.
	ErrJobNotFound = errors.New("job not found")
	// ErrTokenMismatch means the dispatch token failed verification.
	ErrTokenMismatch = errors.New("dispatch token mismatch")
	// ErrSubjectNotFound means the subject id is unknown.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrSubjectNotConfirmed means the subject has not confirmed their email.
	ErrSubjectNotConfirmed = errors.New("subject email not confirmed")
	// ErrSubjectLocked means the subject exhausted their image attempts.
	ErrSubjectLocked = errors.New("subject locked after repeated image failures")
	// ErrInsufficientCredits means the account cannot cover a billed reading.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrAccountRequired means a billed reading was requested without an account.
	ErrAccountRequired = errors.New("account required for billed reading")
)
