package automation

import (
	"fmt"
	"strings"
)

// RenderTemplate substitutes {{path}} placeholders against vars. Paths
// are dot-separated lookups into nested maps (e.g. input.commentText).
// Unresolvable paths render as the empty string; there is no control
// flow.
func RenderTemplate(tmpl string, vars map[string]any) string {
	var b strings.Builder
	for {
		start := strings.Index(tmpl, "{{")
		if start < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		end := strings.Index(tmpl[start:], "}}")
		if end < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		b.WriteString(tmpl[:start])
		path := strings.TrimSpace(tmpl[start+2 : start+end])
		b.WriteString(lookupVar(vars, path))
		tmpl = tmpl[start+end+2:]
	}
}

// RenderPayload walks a payload template and renders every string leaf,
// preserving the surrounding structure.
func RenderPayload(payload map[string]any, vars map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = renderValue(v, vars)
	}
	return out
}

func renderValue(v any, vars map[string]any) any {
	switch value := v.(type) {
	case string:
		return RenderTemplate(value, vars)
	case map[string]any:
		return RenderPayload(value, vars)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = renderValue(item, vars)
		}
		return out
	default:
		return v
	}
}

func lookupVar(vars map[string]any, path string) string {
	if path == "" {
		return ""
	}
	var current any = vars
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = m[seg]
		if !ok {
			return ""
		}
	}
	switch value := current.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}

// EventVars builds the variable map exposed to email and webhook
// templates for one event.
func EventVars(evt Event) map[string]any {
	return map[string]any{
		"input": map[string]any{
			"commentText": evt.Content,
			"messageText": evt.Content,
			"authorId":    evt.AuthorID,
			"authorName":  evt.AuthorName,
			"platform":    evt.Platform,
			"postId":      evt.PostID,
		},
		"event": map[string]any{
			"kind":         string(evt.Kind),
			"occurrenceId": evt.OccurrenceID,
			"workspaceId":  fmt.Sprintf("%d", evt.WorkspaceID),
		},
	}
}
