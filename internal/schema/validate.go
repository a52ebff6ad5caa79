// Package schema validates candidate documents against the per-field word
// contract and the missing-section tolerance policy.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/reading"
)

// sectionSchema is the structural contract for one section: an object with
// at least one string-valued field.
const sectionSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {"type": "string"}
}`

// placeholders are field values that count as no content.
var placeholders = map[string]struct{}{
	"":       {},
	"n/a":    {},
	"na":     {},
	"none":   {},
	"tbd":    {},
	"todo":   {},
	"...":    {},
	"string": {},
}

// Validator applies the tolerance policy. The policy is deliberately
// asymmetric: structural completeness is enforced, prose length is not.
type Validator struct {
	maxMissing int
	section    *gojsonschema.Schema
	logger     *zap.Logger
}

// NewValidator builds a validator tolerating at most maxMissing absent
// required sections.
func NewValidator(maxMissing int, logger *zap.Logger) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(sectionSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile section schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{maxMissing: maxMissing, section: compiled, logger: logger}, nil
}

// Validate checks a recovered JSON object against the fragment. Sections
// outside the fragment's vocabulary are dropped. More than maxMissing missing
// required sections is a hard failure; short fields are recorded but never
// fail the document.
func (v *Validator) Validate(raw map[string]json.RawMessage, fragment reading.SchemaFragment) (*reading.ValidatedDocument, error) {
	sanitized := make(reading.CandidateDocument)

	for name, value := range raw {
		spec := fragment.Spec(name)
		if spec == nil {
			v.logger.Debug("dropping unknown section", zap.String("section", name))
			continue
		}
		fields, ok := v.decodeSection(value)
		if !ok {
			continue // counted as missing below
		}
		sanitized[name] = fields
	}

	var missing []string
	for _, name := range fragment.RequiredSections() {
		if !hasContent(sanitized[name]) {
			missing = append(missing, name)
		}
	}

	if len(missing) > v.maxMissing {
		return nil, &IncompleteContentError{MissingSections: missing, Allowed: v.maxMissing}
	}
	if len(missing) > 0 {
		v.logger.Warn("accepting document with missing sections",
			zap.Strings("missing", missing), zap.Int("tolerance", v.maxMissing))
	}

	shortFields := v.checkWordContract(sanitized, fragment)

	return &reading.ValidatedDocument{
		Sections:        sanitized,
		MissingSections: missing,
		ShortFields:     shortFields,
	}, nil
}

// decodeSection runs the structural pass over one section value and decodes
// it. A section that is not an object of strings is treated as absent.
func (v *Validator) decodeSection(value json.RawMessage) (map[string]string, bool) {
	result, err := v.section.Validate(gojsonschema.NewBytesLoader(value))
	if err != nil || !result.Valid() {
		return nil, false
	}
	var fields map[string]string
	if err := json.Unmarshal(value, &fields); err != nil {
		return nil, false
	}
	for name, text := range fields {
		fields[name] = strings.TrimSpace(text)
	}
	return fields, true
}

// checkWordContract logs and records fields under their word floor. Short
// fields are accepted unconditionally; do not turn this into a failure.
func (v *Validator) checkWordContract(doc reading.CandidateDocument, fragment reading.SchemaFragment) []string {
	var short []string
	for _, spec := range fragment.Sections {
		fields, ok := doc[spec.Name]
		if !ok {
			continue
		}
		for _, contract := range spec.Fields {
			text, ok := fields[contract.Name]
			if !ok || isPlaceholder(text) {
				continue
			}
			words := len(strings.Fields(text))
			if words < contract.MinWords {
				key := spec.Name + "." + contract.Name
				short = append(short, key)
				v.logger.Warn("field under word floor, accepting",
					zap.String("field", key),
					zap.Int("words", words),
					zap.Int("min_words", contract.MinWords))
			}
		}
	}
	return short
}

// hasContent reports whether a section carries at least one non-placeholder
// field.
func hasContent(fields map[string]string) bool {
	for _, text := range fields {
		if !isPlaceholder(text) {
			return true
		}
	}
	return false
}

func isPlaceholder(text string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(text))]
	return ok
}
