// Package llm invokes the OpenAI-compatible generation provider and recovers
// usable content from its replies.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/config"
)

// Request describes one provider invocation.
type Request struct {
	Prompt         string
	SystemPrompt   string
	ImageURL       string
	UseImage       bool
	ResponseFormat string // "" or "json_object"
}

// Usage is the provider's token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a normalized provider reply.
type Result struct {
	Content string
	Usage   Usage
}

// Client is the abstraction the orchestrator generates against.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// HTTPClient talks to any OpenAI-compatible chat-completions endpoint. In
// mock mode it is redirected to a substitute endpoint and sends no credential.
type HTTPClient struct {
	cfg    config.ModelConfig
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPClient builds the provider client. It fails when neither a
// credential nor mock mode is configured.
func NewHTTPClient(cfg config.ModelConfig, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.APIKey == "" && !cfg.MockMode {
		return nil, &ConfigError{Message: "no api key configured and mock mode is inactive"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: 90 * time.Second},
		logger: logger,
	}, nil
}

// wire types for the chat-completions request
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imagePart struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sends one chat-completions call and returns the normalized reply.
// Each call increments the per-attempt counter carried in ctx, if any.
func (c *HTTPClient) Invoke(ctx context.Context, req Request) (*Result, error) {
	if counter := CounterFromContext(ctx); counter != nil {
		counter.Increment()
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.Endpoint, "/")
	if c.cfg.MockMode {
		endpoint = strings.TrimRight(c.cfg.MockEndpoint, "/")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if !c.cfg.MockMode {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	if c.cfg.Trace {
		c.traceRequest(req)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Message: "chat completions call failed", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Message: "failed to read provider response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &MalformedResponseError{Message: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.Content) == 0 {
		return nil, &MalformedResponseError{Message: "response carries no message content"}
	}

	content := Normalize(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, &MalformedResponseError{Message: "message content normalized to empty text"}
	}

	if c.cfg.Trace {
		c.traceResponse(content, parsed.Usage)
	}

	return &Result{Content: content, Usage: parsed.Usage}, nil
}

func (c *HTTPClient) buildRequest(req Request) chatRequest {
	model := c.cfg.Model
	if req.UseImage && c.cfg.VisionModel != "" {
		model = c.cfg.VisionModel
	}

	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}

	if req.UseImage && req.ImageURL != "" {
		parts := []any{
			textPart{Type: "text", Text: req.Prompt},
			imagePart{Type: "image_url", ImageURL: imageURL{URL: req.ImageURL, Detail: "high"}},
		}
		messages = append(messages, chatMessage{Role: "user", Content: parts})
	} else {
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	}

	out := chatRequest{
		Model:       model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages:    messages,
	}
	if req.ResponseFormat != "" {
		out.ResponseFormat = &formatSpec{Type: req.ResponseFormat}
	}
	return out
}
