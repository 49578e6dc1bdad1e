package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PabloGalante/insighter/internal/domain"
)

const defaultMaxTokens = 4096

// messageText flattens a message for text-only chat endpoints.
// Attachments that were not normalized upstream are rendered as a reference line.
func messageText(m *domain.Message) string {
	if m.Content.IsPlain() {
		return m.Content.Text
	}
	var parts []string
	for _, it := range m.Content.Items {
		switch {
		case it.Type == domain.ContentText:
			if it.Text != "" {
				parts = append(parts, it.Text)
			}
		case it.File != nil:
			parts = append(parts, fmt.Sprintf("[%s: %s %s]", it.Type, it.File.Filename, it.File.URL))
		}
	}
	return strings.Join(parts, "\n")
}

func argsJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// parseArgs decodes a JSON argument object. Malformed input yields an empty map
// so the tool layer reports missing arguments instead of the adapter failing.
func parseArgs(raw string) map[string]any {
	out := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}

// toolNames maps tool call IDs to tool names across a history.
func toolNames(msgs []*domain.Message) map[string]string {
	names := map[string]string{}
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			names[tc.ID] = tc.Name
		}
	}
	return names
}

func maxTokensOr(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
