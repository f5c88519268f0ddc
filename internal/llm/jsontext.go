package llm

import "strings"

// ExtractJSON pulls a JSON document out of a model reply. It accepts a bare
// object or array, either wrapped in a markdown code fence, or an object
// embedded in prose (first '{' to last '}').
func ExtractJSON(raw string) (string, bool) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text, true
	}
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		return text, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
