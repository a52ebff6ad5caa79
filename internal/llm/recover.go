package llm

import (
	"encoding/json"
	"strings"
)

// Normalize flattens a chat message content value into one string. Providers
// return either a plain string or an array of typed parts; the text parts are
// concatenated in order.
func Normalize(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// StripFences removes markdown code fence wrappers. Models wrap JSON in
// ```json ... ``` blocks even when instructed not to.
func StripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language identifier on the first line.
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	return text
}

// RecoverJSON parses text as a JSON object, falling back to the substring
// between the first '{' and the last '}' when the reply carries chatter
// around the object. Returns false when no object can be recovered.
func RecoverJSON(text string) (map[string]json.RawMessage, bool) {
	text = StripFences(text)

	var direct map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var windowed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &windowed); err != nil {
		return nil, false
	}
	return windowed, true
}

// LooksLikeRefusal reports whether text begins with one of the refusal
// phrases. The match is a prefix test on the trimmed, lower-cased text; the
// same phrase appearing mid-reply (for example inside reflective prose) must
// not count as a refusal.
func LooksLikeRefusal(text string, phrases []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimLeft(normalized, "\"'*_ \t")
	for _, phrase := range phrases {
		if strings.HasPrefix(normalized, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
