package generation

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/llm"
	"github.com/visara/reading-engine/internal/prompts"
	"github.com/visara/reading-engine/internal/reading"
	"github.com/visara/reading-engine/internal/schema"
)

// GenerateStructured runs the two-phase JSON pipeline for teaser and full
// readings. The phases are strictly sequential: the completion prompt depends
// on the vision summary.
func (o *Orchestrator) GenerateStructured(ctx context.Context, gctx reading.GenerationContext, kind reading.Kind) (*reading.ValidatedDocument, error) {
	ctx, counter := llm.WithCallCounter(ctx)

	visionDoc, summary, err := o.visionPhase(ctx, gctx)
	if err != nil {
		return nil, err
	}
	gctx = gctx.WithVisionSummary(summary)

	completionDoc, err := o.completionPhase(ctx, gctx, kind)
	if err != nil {
		return nil, err
	}

	// Completion fields win over duplicate vision placeholders.
	merged := visionToCandidate(visionDoc).Merge(completionDoc)

	validated, err := o.validateMerged(merged, kind)
	if err != nil {
		return nil, err
	}

	o.logger.Info("structured generation complete",
		zap.String("kind", string(kind)),
		zap.Int("sections", len(validated.Sections)),
		zap.Int("model_calls", counter.Count()))
	return validated, nil
}

// visionPhase analyzes the photo. One rescue retry with an alternate system
// prompt; a second failure is terminal ImageInvalid, and the caller applies
// attempt counting and lockout on that code.
func (o *Orchestrator) visionPhase(ctx context.Context, gctx reading.GenerationContext) (map[string]json.RawMessage, string, error) {
	fragment := reading.VisionFragment()
	prompt := prompts.Vision(gctx, fragment)

	systemPrompts := []string{prompts.SystemDefault, prompts.SystemVisionRescue}
	var lastReason string
	var lastErr error

	for i, system := range systemPrompts {
		if i > 0 {
			o.logger.Warn("vision phase retrying with rescue prompt", zap.String("reason", lastReason))
		}
		result, callErr := o.invoke(ctx, llm.Request{
			Prompt:         prompt,
			SystemPrompt:   system,
			ImageURL:       gctx.ImageURL,
			UseImage:       true,
			ResponseFormat: "json_object",
		})
		if callErr != nil {
			lastReason, lastErr = ReasonAPIError, callErr
			continue
		}
		if o.isRefusal(result.Content) {
			lastReason, lastErr = ReasonNotAPerson, nil
			continue
		}
		raw, ok := llm.RecoverJSON(result.Content)
		if !ok {
			lastReason, lastErr = ReasonLowConfidence, nil
			continue
		}
		summary := extractSummary(raw)
		if summary == "" {
			lastReason, lastErr = ReasonLowConfidence, nil
			continue
		}
		return raw, summary, nil
	}

	gerr := NewError(CodeImageInvalid, "vision analysis failed").WithData("reason", lastReason)
	if lastErr != nil {
		gerr = gerr.WithCause(lastErr)
	}
	return nil, "", gerr
}

// completionPhase produces the remaining sections from the vision summary.
// The teaser flow escalates through one plain retry and one rescue prompt;
// the paid flow fails fast on content errors to bound cost, since the user
// already holds a teaser.
func (o *Orchestrator) completionPhase(ctx context.Context, gctx reading.GenerationContext, kind reading.Kind) (reading.CandidateDocument, error) {
	fragment := reading.FragmentFor(kind)
	prompt := prompts.Completion(gctx, fragment)

	systemPrompts := []string{prompts.SystemDefault}
	if kind == reading.KindTeaser {
		systemPrompts = []string{prompts.SystemDefault, prompts.SystemDefault, prompts.SystemStrongRescue}
	}

	var lastErr error
	for i, system := range systemPrompts {
		if i > 0 {
			o.logger.Warn("completion phase retrying", zap.Int("attempt", i+1), zap.Error(lastErr))
		}
		result, callErr := o.invoke(ctx, llm.Request{
			Prompt:         prompt,
			SystemPrompt:   system,
			ResponseFormat: "json_object",
		})
		if callErr != nil {
			lastErr = callErr
			continue
		}
		if o.isRefusal(result.Content) {
			lastErr = NewError(CodeRefused, "model refused the completion phase")
			continue
		}
		raw, ok := llm.RecoverJSON(result.Content)
		if !ok {
			lastErr = NewError(CodeParseError, "completion reply is not recoverable JSON")
			continue
		}
		return rawToCandidate(raw), nil
	}
	return nil, lastErr
}

// validateMerged applies the tolerance policy. IncompleteContent is a hard
// failure with no further retries.
func (o *Orchestrator) validateMerged(doc reading.CandidateDocument, kind reading.Kind) (*reading.ValidatedDocument, error) {
	raw := make(map[string]json.RawMessage, len(doc))
	for name, fields := range doc {
		encoded, err := json.Marshal(fields)
		if err != nil {
			continue
		}
		raw[name] = encoded
	}

	validated, err := o.validator.Validate(raw, reading.FragmentFor(kind))
	if err != nil {
		var incomplete *schema.IncompleteContentError
		if errors.As(err, &incomplete) {
			return nil, NewError(CodeIncompleteContent, incomplete.Error()).
				WithData("missing_sections", incomplete.MissingSections).WithCause(err)
		}
		return nil, NewError(CodeGenerationFailed, "validation failed").WithCause(err)
	}
	return validated, nil
}

// extractSummary pulls the observation summary out of the vision reply.
func extractSummary(raw map[string]json.RawMessage) string {
	value, ok := raw[prompts.SummaryKey]
	if !ok {
		return ""
	}
	var summary string
	if err := json.Unmarshal(value, &summary); err != nil {
		return ""
	}
	return summary
}

// visionToCandidate converts the vision reply into a candidate document,
// dropping the summary key and any non-section values.
func visionToCandidate(raw map[string]json.RawMessage) reading.CandidateDocument {
	doc := make(reading.CandidateDocument)
	for name, value := range raw {
		if name == prompts.SummaryKey {
			continue
		}
		var fields map[string]string
		if err := json.Unmarshal(value, &fields); err != nil {
			continue
		}
		doc[name] = fields
	}
	return doc
}

// rawToCandidate converts a recovered JSON object into a candidate document.
// Non-object sections are dropped here and resurface as missing during
// validation.
func rawToCandidate(raw map[string]json.RawMessage) reading.CandidateDocument {
	doc := make(reading.CandidateDocument)
	for name, value := range raw {
		var fields map[string]string
		if err := json.Unmarshal(value, &fields); err != nil {
			continue
		}
		doc[name] = fields
	}
	return doc
}
