package llm

import (
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
)

// contentHash returns a short SHA-256 digest so traces can correlate requests
// and responses without retaining prompt or reply text.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// traceRequest logs a redacted view of an outgoing call. The image payload
// and credential never reach the log; prompt bodies are reduced to hashes.
func (c *HTTPClient) traceRequest(req Request) {
	image := ""
	if req.UseImage && req.ImageURL != "" {
		image = "[image omitted]"
	}
	c.logger.Debug("llm request",
		zap.String("prompt_hash", contentHash(req.Prompt)),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.String("system_hash", contentHash(req.SystemPrompt)),
		zap.String("image", image),
		zap.String("response_format", req.ResponseFormat),
		zap.String("authorization", "[redacted]"),
	)
}

// traceResponse logs a redacted view of a reply.
func (c *HTTPClient) traceResponse(content string, usage Usage) {
	c.logger.Debug("llm response",
		zap.String("content_hash", contentHash(content)),
		zap.Int("content_len", len(content)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)
}
