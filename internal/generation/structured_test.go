package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visara/reading-engine/internal/config"
	"github.com/visara/reading-engine/internal/llm"
	"github.com/visara/reading-engine/internal/prompts"
	"github.com/visara/reading-engine/internal/reading"
	"github.com/visara/reading-engine/internal/schema"
)

// reply scripts one fake model response.
type reply struct {
	content string
	err     error
}

// scriptedClient returns scripted replies in order and records the requests.
type scriptedClient struct {
	replies  []reply
	requests []llm.Request
}

func (c *scriptedClient) Invoke(ctx context.Context, req llm.Request) (*llm.Result, error) {
	if counter := llm.CounterFromContext(ctx); counter != nil {
		counter.Increment()
	}
	c.requests = append(c.requests, req)
	if len(c.replies) == 0 {
		return nil, &llm.UpstreamError{Status: 500, Body: "script exhausted"}
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &llm.Result{Content: next.content}, nil
}

func newTestOrchestrator(t *testing.T, client llm.Client) *Orchestrator {
	t.Helper()
	validator, err := schema.NewValidator(2, nil)
	require.NoError(t, err)
	return New(client, validator, config.Default().Tuning, nil)
}

func testGenerationContext() reading.GenerationContext {
	return reading.GenerationContext{
		SubjectID: uuid.New(),
		Name:      "Maya",
		BirthDate: "1991-04-17",
		Gender:    "female",
		QuizAnswers: map[string]string{
			"self_description":    "curious and restless",
			"main_goal":           "starting my own studio",
			"relationship_status": "single",
			"proud_of":            "finishing my degree while working",
		},
		ImageURL: "https://example.com/photo.jpg",
	}
}

func narrative(words int) string {
	return strings.TrimSpace(strings.Repeat("insight ", words))
}

// visionReply builds a valid phase-one reply with the observation summary.
func visionReply() string {
	payload := map[string]any{
		prompts.SummaryKey: "an open, attentive face with a steady gaze",
		"first_impression": map[string]string{"summary": narrative(20), "detail": narrative(80)},
		"facial_signature": map[string]string{"summary": narrative(20), "detail": narrative(80)},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// completionReply builds a phase-two reply covering the fragment's sections.
func completionReply(fragment reading.SchemaFragment) string {
	payload := make(map[string]any)
	for _, spec := range fragment.Sections {
		payload[spec.Name] = map[string]string{"summary": narrative(20), "detail": narrative(100)}
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestGenerateStructuredTeaserSuccess(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: visionReply()},
		{content: completionReply(reading.TeaserFragment())},
	}}
	o := newTestOrchestrator(t, client)

	doc, err := o.GenerateStructured(context.Background(), testGenerationContext(), reading.KindTeaser)
	require.NoError(t, err)

	assert.Len(t, doc.Sections, 10)
	assert.Empty(t, doc.MissingSections)
	require.Len(t, client.requests, 2)

	// Phase one carries the photo, phase two is text-only.
	assert.True(t, client.requests[0].UseImage)
	assert.Equal(t, "json_object", client.requests[0].ResponseFormat)
	assert.False(t, client.requests[1].UseImage)
	assert.Contains(t, client.requests[1].Prompt, "an open, attentive face")
}

func TestGenerateStructuredVisionRescue(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: "I'm sorry, I can't analyze this image."},
		{content: visionReply()},
		{content: completionReply(reading.TeaserFragment())},
	}}
	o := newTestOrchestrator(t, client)

	doc, err := o.GenerateStructured(context.Background(), testGenerationContext(), reading.KindTeaser)
	require.NoError(t, err)
	assert.Len(t, doc.Sections, 10)

	require.Len(t, client.requests, 3)
	assert.Equal(t, prompts.SystemDefault, client.requests[0].SystemPrompt)
	assert.Equal(t, prompts.SystemVisionRescue, client.requests[1].SystemPrompt)
}

func TestGenerateStructuredImageInvalidReasons(t *testing.T) {
	cases := []struct {
		name   string
		script []reply
		reason string
	}{
		{
			name: "refusals",
			script: []reply{
				{content: "I'm sorry, I cannot describe people."},
				{content: "I cannot help with that."},
			},
			reason: ReasonNotAPerson,
		},
		{
			name: "unparseable",
			script: []reply{
				{content: "a lovely portrait, truly"},
				{content: "still not json"},
			},
			reason: ReasonLowConfidence,
		},
		{
			name: "missing summary",
			script: []reply{
				{content: `{"first_impression": {"summary": "short"}}`},
				{content: `{"facial_signature": {"summary": "short"}}`},
			},
			reason: ReasonLowConfidence,
		},
		{
			name: "transport",
			script: []reply{
				{err: &llm.UpstreamError{Status: 400, Body: "bad image"}},
				{err: &llm.UpstreamError{Status: 400, Body: "bad image"}},
			},
			reason: ReasonAPIError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &scriptedClient{replies: tc.script}
			o := newTestOrchestrator(t, client)

			_, err := o.GenerateStructured(context.Background(), testGenerationContext(), reading.KindTeaser)
			require.Error(t, err)
			assert.Equal(t, CodeImageInvalid, CodeOf(err))

			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tc.reason, gerr.Data["reason"])
		})
	}
}

func TestGenerateStructuredTeaserCompletionEscalation(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: visionReply()},
		{content: "I'm sorry, I can't write this."},
		{content: "here is some non-json chatter"},
		{content: completionReply(reading.TeaserFragment())},
	}}
	o := newTestOrchestrator(t, client)

	doc, err := o.GenerateStructured(context.Background(), testGenerationContext(), reading.KindTeaser)
	require.NoError(t, err)
	assert.Len(t, doc.Sections, 10)

	require.Len(t, client.requests, 4)
	assert.Equal(t, prompts.SystemStrongRescue, client.requests[3].SystemPrompt)
}

func TestGenerateStructuredFullFailsFastOnRefusal(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: visionReply()},
		{content: "I'm sorry, I can't write this."},
	}}
	o := newTestOrchestrator(t, client)

	_, err := o.GenerateStructured(context.Background(), testGenerationContext(), reading.KindFull)
	require.Error(t, err)
	assert.Equal(t, CodeRefused, CodeOf(err))
	assert.Len(t, client.requests, 2)
}

func TestGenerateStructuredCompletionWinsMerge(t *testing.T) {
	completion := make(map[string]any)
	for _, spec := range reading.TeaserFragment().Sections {
		completion[spec.Name] = map[string]string{"summary": narrative(20), "detail": narrative(100)}
	}
	completion["first_impression"] = map[string]string{
		"summary": "the completion phase rewrote this impression entirely " + narrative(12),
		"detail":  narrative(100),
	}
	data, _ := json.Marshal(completion)

	client := &scriptedClient{replies: []reply{
		{content: visionReply()},
		{content: string(data)},
	}}
	o := newTestOrchestrator(t, client)

	doc, err := o.GenerateStructured(context.Background(), testGenerationContext(), reading.KindTeaser)
	require.NoError(t, err)
	assert.Contains(t, doc.Sections["first_impression"]["summary"], "rewrote this impression")
}

func TestGenerateStructuredIncompleteContent(t *testing.T) {
	// Completion delivers only three of the eight remaining sections.
	partial := map[string]any{
		"core_essence":      map[string]string{"summary": narrative(20), "detail": narrative(100)},
		"natural_strengths": map[string]string{"summary": narrative(20), "detail": narrative(100)},
		"year_ahead":        map[string]string{"summary": narrative(20), "detail": narrative(100)},
	}
	data, _ := json.Marshal(partial)

	client := &scriptedClient{replies: []reply{
		{content: visionReply()},
		{content: string(data)},
	}}
	o := newTestOrchestrator(t, client)

	_, err := o.GenerateStructured(context.Background(), testGenerationContext(), reading.KindTeaser)
	require.Error(t, err)
	assert.Equal(t, CodeIncompleteContent, CodeOf(err))

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	missing, ok := gerr.Data["missing_sections"].([]string)
	require.True(t, ok)
	assert.Contains(t, missing, "life_purpose")
}

func TestClassifyTransport(t *testing.T) {
	assert.Equal(t, CodeConfigMissing, classifyTransport(&llm.ConfigError{Message: "no key"}).Code)
	assert.Equal(t, CodeNetworkFailure, classifyTransport(&llm.NetworkError{Message: "refused"}).Code)
	assert.Equal(t, CodeUpstreamError, classifyTransport(&llm.UpstreamError{Status: 503}).Code)
	assert.Equal(t, CodeMalformedResponse, classifyTransport(&llm.MalformedResponseError{Message: "empty"}).Code)
	assert.Equal(t, CodeGenerationFailed, classifyTransport(fmt.Errorf("other")).Code)
}

func TestRetryableTransport(t *testing.T) {
	assert.True(t, retryableTransport(&llm.NetworkError{Message: "timeout"}))
	assert.True(t, retryableTransport(&llm.UpstreamError{Status: 500}))
	assert.True(t, retryableTransport(&llm.UpstreamError{Status: 429}))
	assert.False(t, retryableTransport(&llm.UpstreamError{Status: 400}))
	assert.False(t, retryableTransport(&llm.MalformedResponseError{Message: "garbage"}))
}
