package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// ParseJSONResponse extracts the JSON object from a model reply. Models
// wrap the object in a markdown fence often enough, even when the prompt
// forbids it, that the fence and its language tag are stripped before
// decoding. Returns nil when no object can be decoded.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		// Drop the opening fence line (``` or ```json) and everything
		// after the closing fence.
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[i+1:]
		} else {
			rest = ""
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = strings.TrimSpace(rest)
	}
	if text == "" {
		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		log.Printf("classifier reply is not valid JSON: %v", err)
		return nil
	}
	return fields
}
