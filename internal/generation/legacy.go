package generation

import (
	"context"

	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/llm"
	"github.com/visara/reading-engine/internal/prompts"
	"github.com/visara/reading-engine/internal/reading"
)

// LegacyResult is the outcome of the free-text pipeline.
type LegacyResult struct {
	Text         string
	FallbackUsed bool
	ModelCalls   int
}

// GenerateLegacy runs the single free-text pipeline. It never surfaces a
// content-quality failure: when the escalation ladder is exhausted the
// deterministic fallback reading is substituted.
func (o *Orchestrator) GenerateLegacy(ctx context.Context, gctx reading.GenerationContext) *LegacyResult {
	ctx, counter := llm.WithCallCounter(ctx)

	text := o.legacyLadder(ctx, gctx)

	// Extension pass: lengthen a recovered-but-thin reading once.
	if text != "" && !o.isRefusal(text) {
		words := llm.WordCount(text)
		if words < o.tuning.LegacyExtendBelow {
			o.logger.Info("legacy reading under extension floor, extending",
				zap.Int("words", words), zap.Int("floor", o.tuning.LegacyExtendBelow))
			if extended := o.legacyExtend(ctx, text); extended != "" {
				text = extended
			}
		}
	}

	if !o.legacyAcceptable(text) {
		o.logger.Warn("legacy ladder exhausted, substituting deterministic fallback",
			zap.Int("words", llm.WordCount(text)))
		return &LegacyResult{
			Text:         FallbackReading(gctx),
			FallbackUsed: true,
			ModelCalls:   counter.Count(),
		}
	}

	return &LegacyResult{Text: text, ModelCalls: counter.Count()}
}

// legacyLadder runs the three-step escalation: plain attempt with image,
// strong anti-refusal retry with image, strictest rescue without image.
func (o *Orchestrator) legacyLadder(ctx context.Context, gctx reading.GenerationContext) string {
	steps := []llm.Request{
		{Prompt: prompts.Legacy(gctx), SystemPrompt: prompts.SystemDefault, ImageURL: gctx.ImageURL, UseImage: true},
		{Prompt: prompts.Legacy(gctx), SystemPrompt: prompts.SystemStrongRescue, ImageURL: gctx.ImageURL, UseImage: true},
		{Prompt: prompts.LegacyTextOnly(gctx), SystemPrompt: prompts.SystemStrictest},
	}

	var best string
	for i, req := range steps {
		result, callErr := o.invoke(ctx, req)
		if callErr != nil {
			o.logger.Warn("legacy attempt failed", zap.Int("step", i+1), zap.Error(callErr))
			continue
		}
		text := result.Content
		if o.isRefusal(text) {
			o.logger.Warn("legacy attempt refused", zap.Int("step", i+1))
			continue
		}
		best = text
		words := llm.WordCount(text)
		if words >= o.tuning.LegacyMinWords && words <= o.tuning.LegacyMaxWords {
			return text
		}
		o.logger.Warn("legacy attempt outside word window",
			zap.Int("step", i+1), zap.Int("words", words),
			zap.Int("min", o.tuning.LegacyMinWords), zap.Int("max", o.tuning.LegacyMaxWords))
	}
	// Out-of-window prose still beats nothing: the extension pass or the
	// final acceptance window may rescue it.
	return best
}

// legacyExtend asks the model to lengthen the reading while preserving its
// structure. Failure leaves the original text untouched.
func (o *Orchestrator) legacyExtend(ctx context.Context, text string) string {
	result, callErr := o.invoke(ctx, llm.Request{
		Prompt:       prompts.Extension(text, o.tuning.LegacyExtendBelow),
		SystemPrompt: prompts.SystemStrongRescue,
	})
	if callErr != nil {
		o.logger.Warn("extension pass failed", zap.Error(callErr))
		return ""
	}
	extended := result.Content
	if o.isRefusal(extended) || llm.WordCount(extended) <= llm.WordCount(text) {
		return ""
	}
	return extended
}

// legacyAcceptable applies the final acceptance window.
func (o *Orchestrator) legacyAcceptable(text string) bool {
	if text == "" || o.isRefusal(text) {
		return false
	}
	words := llm.WordCount(text)
	return words >= o.tuning.LegacyFinalMinWords && words <= o.tuning.LegacyFinalMaxWords
}
