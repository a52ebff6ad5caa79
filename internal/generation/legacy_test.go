package generation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visara/reading-engine/internal/llm"
	"github.com/visara/reading-engine/internal/prompts"
)

func prose(words int) string {
	return strings.TrimSpace(strings.Repeat("word ", words))
}

func TestGenerateLegacyFirstAttemptSucceeds(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: prose(900)},
	}}
	o := newTestOrchestrator(t, client)

	result := o.GenerateLegacy(context.Background(), testGenerationContext())
	require.NotNil(t, result)

	assert.False(t, result.FallbackUsed)
	assert.Equal(t, prose(900), result.Text)
	assert.Equal(t, 1, result.ModelCalls)

	require.Len(t, client.requests, 1)
	assert.True(t, client.requests[0].UseImage)
	assert.Equal(t, prompts.SystemDefault, client.requests[0].SystemPrompt)
}

func TestGenerateLegacyLadderEscalation(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: "I'm sorry, I can't create this reading."},
		{content: "I cannot write about real people."},
		{content: prose(900)},
	}}
	o := newTestOrchestrator(t, client)

	result := o.GenerateLegacy(context.Background(), testGenerationContext())
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, 3, result.ModelCalls)

	require.Len(t, client.requests, 3)
	assert.Equal(t, prompts.SystemStrongRescue, client.requests[1].SystemPrompt)
	// The last rung drops the image entirely.
	assert.Equal(t, prompts.SystemStrictest, client.requests[2].SystemPrompt)
	assert.False(t, client.requests[2].UseImage)
}

func TestGenerateLegacyExtensionPass(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: prose(660)},
		{content: prose(820)},
	}}
	o := newTestOrchestrator(t, client)

	result := o.GenerateLegacy(context.Background(), testGenerationContext())
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, prose(820), result.Text)
	assert.Equal(t, 2, result.ModelCalls)

	require.Len(t, client.requests, 2)
	assert.Contains(t, client.requests[1].Prompt, prose(660))
}

func TestGenerateLegacyExtensionRejectedWhenNotLonger(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: prose(660)},
		{content: prose(400)},
	}}
	o := newTestOrchestrator(t, client)

	// The rejected extension leaves the original, which clears the final
	// acceptance floor on its own.
	result := o.GenerateLegacy(context.Background(), testGenerationContext())
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, prose(660), result.Text)
}

func TestGenerateLegacyNoExtensionAboveFloor(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: prose(750)},
	}}
	o := newTestOrchestrator(t, client)

	result := o.GenerateLegacy(context.Background(), testGenerationContext())
	assert.False(t, result.FallbackUsed)
	assert.Len(t, client.requests, 1)
}

func TestGenerateLegacyFallbackOnExhaustedLadder(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{content: "I'm sorry, I can't do that."},
		{content: "I'm sorry, I still can't."},
		{content: "As an AI, I must decline."},
	}}
	o := newTestOrchestrator(t, client)

	result := o.GenerateLegacy(context.Background(), testGenerationContext())
	require.True(t, result.FallbackUsed)
	assert.Equal(t, 3, result.ModelCalls)

	for _, header := range FallbackHeaders {
		assert.Contains(t, result.Text, header)
	}
	assert.Contains(t, result.Text, "Maya")
}

func TestGenerateLegacyFallbackOnTransportFailure(t *testing.T) {
	badImage := &llm.UpstreamError{Status: 400, Body: "invalid image"}
	client := &scriptedClient{replies: []reply{
		{err: badImage},
		{err: badImage},
		{err: badImage},
	}}
	o := newTestOrchestrator(t, client)

	result := o.GenerateLegacy(context.Background(), testGenerationContext())
	assert.True(t, result.FallbackUsed)
	assert.NotEmpty(t, result.Text)
}

func TestGenerateLegacyFallbackOnOverlongText(t *testing.T) {
	// Every rung produces text past the hard ceiling.
	client := &scriptedClient{replies: []reply{
		{content: prose(2000)},
		{content: prose(2000)},
		{content: prose(2000)},
	}}
	o := newTestOrchestrator(t, client)

	result := o.GenerateLegacy(context.Background(), testGenerationContext())
	assert.True(t, result.FallbackUsed)
}

func TestFallbackReadingDeterministic(t *testing.T) {
	gctx := testGenerationContext()
	assert.Equal(t, FallbackReading(gctx), FallbackReading(gctx))
}

func TestFallbackReadingUsesAnswers(t *testing.T) {
	gctx := testGenerationContext()
	text := FallbackReading(gctx)

	assert.Contains(t, text, "Maya")
	assert.Contains(t, text, "curious and restless")
	assert.Contains(t, text, "starting my own studio")
}

func TestFallbackReadingDefaultsName(t *testing.T) {
	gctx := testGenerationContext()
	gctx.Name = ""
	assert.Contains(t, FallbackReading(gctx), "Friend")
}
