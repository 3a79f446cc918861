package memory

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// MaxContentBytes is the upper bound on rendered content accepted by
// the relational store.
const MaxContentBytes = 50_000

// RenderContent turns an entry payload into storable text. Interaction
// maps with input/response fields are rendered as a dialogue turn;
// other structured values fall back to their JSON form.
func RenderContent(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case map[string]any:
		input, hasInput := v["input"].(string)
		response, hasResponse := v["response"].(string)
		if hasInput || hasResponse {
			var b strings.Builder
			if hasInput {
				b.WriteString("Usuario: ")
				b.WriteString(input)
			}
			if hasResponse {
				if hasInput {
					b.WriteString("\n")
				}
				b.WriteString("Ava: ")
				b.WriteString(response)
			}
			return b.String()
		}
		if encoded, err := json.Marshal(v); err == nil {
			return string(encoded)
		}
		return fmt.Sprintf("%v", v)
	default:
		if encoded, err := json.Marshal(v); err == nil {
			return string(encoded)
		}
		return fmt.Sprintf("%v", v)
	}
}

// SafeContent rejects content that the relational store cannot hold:
// oversized payloads and text carrying control characters other than
// ordinary whitespace.
func SafeContent(content string) error {
	if len(content) > MaxContentBytes {
		return ValidationError{Field: "content", Reason: fmt.Sprintf("exceeds %d bytes", MaxContentBytes)}
	}
	for _, r := range content {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return ValidationError{Field: "content", Reason: "contains control characters"}
		}
	}
	return nil
}
