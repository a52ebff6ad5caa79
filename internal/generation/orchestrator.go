// Package generation composes the prompt builder, model client, response
// recoverer and schema validator into the reading pipelines.
package generation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/config"
	"github.com/visara/reading-engine/internal/llm"
	"github.com/visara/reading-engine/internal/schema"
)

// transportAttempts bounds the immediate retries for transient transport
// failures on a single logical call.
const transportAttempts = 2

// Orchestrator runs the generation pipelines. It is stateless between
// attempts; the per-attempt call counter lives in the context.
type Orchestrator struct {
	client    llm.Client
	validator *schema.Validator
	tuning    config.Tuning
	logger    *zap.Logger
}

// New builds an orchestrator.
func New(client llm.Client, validator *schema.Validator, tuning config.Tuning, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{client: client, validator: validator, tuning: tuning, logger: logger}
}

// invoke performs one logical model call, retrying transient transport
// failures a bounded number of times. Transport errors never escape raw;
// they come back taxonomy-coded.
func (o *Orchestrator) invoke(ctx context.Context, req llm.Request) (*llm.Result, *Error) {
	var lastErr error
	for attempt := 0; attempt < transportAttempts; attempt++ {
		result, err := o.client.Invoke(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryableTransport(err) {
			break
		}
		o.logger.Warn("transient model failure, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, NewError(CodeNetworkFailure, "context cancelled during retry").WithCause(ctx.Err())
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	return nil, classifyTransport(lastErr)
}

// isRefusal applies the configured refusal heuristic.
func (o *Orchestrator) isRefusal(text string) bool {
	return llm.LooksLikeRefusal(text, o.tuning.RefusalPhrases)
}
