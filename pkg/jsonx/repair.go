// Package jsonx extracts JSON objects from LLM output. Model replies wrap
// JSON in prose or markdown fences and occasionally truncate mid-object;
// callers treat an unrecoverable payload as a signal to fall back, never
// as a program error.
package jsonx

import (
	"encoding/json"
	"strings"
)

// ExtractObject locates the first top-level JSON object inside text and
// unmarshals it. On a strict decode failure it repairs the payload once
// (fence stripping, quote closing, brace balancing) and retries. Returns
// false when no object can be recovered.
func ExtractObject(text string) (map[string]any, bool) {
	candidate := sliceObject(text)
	if candidate == "" {
		return nil, false
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		return parsed, true
	}

	repaired := Repair(candidate)
	if err := json.Unmarshal([]byte(repaired), &parsed); err == nil {
		return parsed, true
	}
	return nil, false
}

// sliceObject cuts text down to the first '{' through the last '}'.
// When no brace pair exists the trimmed text is returned as-is so the
// strict decode can still reject it.
func sliceObject(text string) string {
	text = StripFences(strings.TrimSpace(text))
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// StripFences removes a surrounding markdown code fence, with or without
// a json language tag.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimSpace(text[len("```json"):])
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(text[3:])
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(text[:len(text)-3])
	}
	return text
}

// Repair performs a single balancing pass over a truncated JSON payload:
// it closes an unterminated string, then closes every brace and bracket
// still open at the end of the text. String contents are tracked so
// braces inside values do not count.
func Repair(text string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, c)
			}
		case '}':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
