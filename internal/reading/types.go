// Package reading defines the domain types for generated readings.
package reading

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which flavor of reading a pipeline produces.
type Kind string

// Reading kinds
const (
	// KindTeaser is the free, partially unlocked structured reading.
	KindTeaser Kind = "teaser"
	// KindFull is the paid, fully unlocked structured reading.
	KindFull Kind = "full"
	// KindLegacy is the single free-text reading from the original flow.
	KindLegacy Kind = "legacy"
)

// Billed reports whether generating this kind consumes a credit.
func (k Kind) Billed() bool {
	return k == KindFull
}

// Valid reports whether k is a known reading kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTeaser, KindFull, KindLegacy:
		return true
	}
	return false
}

// GenerationContext carries everything a single generation attempt needs.
// It is built once per attempt and never mutated afterwards.
type GenerationContext struct {
	SubjectID     uuid.UUID         `json:"subject_id"`
	Name          string            `json:"name"`
	BirthDate     string            `json:"birth_date,omitempty"`
	Gender        string            `json:"gender,omitempty"`
	QuizAnswers   map[string]string `json:"quiz_answers"`
	ImageURL      string            `json:"image_url"`
	VisionSummary string            `json:"vision_summary,omitempty"`
}

// WithVisionSummary returns a copy of the context carrying the phase-one
// vision summary for the completion phase.
func (g GenerationContext) WithVisionSummary(summary string) GenerationContext {
	g.VisionSummary = summary
	return g
}

// CandidateDocument is the model's raw section output. It is untrusted until
// it has passed schema validation.
type CandidateDocument map[string]map[string]string

// Merge overlays other onto the document. Fields present in other always win
// over duplicates already in the document.
func (d CandidateDocument) Merge(other CandidateDocument) CandidateDocument {
	merged := make(CandidateDocument, len(d)+len(other))
	for section, fields := range d {
		dst := make(map[string]string, len(fields))
		for name, value := range fields {
			dst[name] = value
		}
		merged[section] = dst
	}
	for section, fields := range other {
		dst, ok := merged[section]
		if !ok {
			dst = make(map[string]string, len(fields))
			merged[section] = dst
		}
		for name, value := range fields {
			dst[name] = value
		}
	}
	return merged
}

// ValidatedDocument is a CandidateDocument that passed validation. The missing
// and short lists are informational only; they never re-trigger the model.
type ValidatedDocument struct {
	Sections        CandidateDocument `json:"sections"`
	MissingSections []string          `json:"missing_sections,omitempty"`
	ShortFields     []string          `json:"short_fields,omitempty"`
}

// Reading is the persisted generation result.
type Reading struct {
	ID        uuid.UUID          `json:"id"`
	SubjectID uuid.UUID          `json:"subject_id"`
	AccountID *uuid.UUID         `json:"account_id,omitempty"`
	Kind      Kind               `json:"kind"`
	Document  *ValidatedDocument `json:"document,omitempty"`
	Text      string             `json:"text,omitempty"`
	Unlocked  bool               `json:"unlocked"`
	Purchased bool               `json:"purchased"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Subject is the read-only view of a lead supplied by the capture flow.
type Subject struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	EmailConfirmed bool              `json:"email_confirmed"`
	BirthDate      string            `json:"birth_date,omitempty"`
	Gender         string            `json:"gender,omitempty"`
	QuizAnswers    map[string]string `json:"quiz_answers"`
	ImageURL       string            `json:"image_url"`
}
