package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentChars bounds, in characters, how much document text goes into
// the user prompt.
const MaxContentChars = 12000

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a data-protection analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- risk_level is lowercase: low, medium or high.
- sensitive_items lists every instance of personal or secret data found.
- type is one of: email, phone, ssn, credit_card, address, name, date_of_birth, api_key, password, other.
- confidence is a number between 0 and 1.
- location is {"start": <int>, "end": <int>} character offsets into the provided text, or null when unknown.
- count is how many times the same value occurs (at least 1).
- processing_time is 0; the caller measures it.
- If the document cannot be analysed, respond with {"error": "<reason>"} and nothing else.

Schema (example with empty values):
{
  "risk_level": "<low|medium|high>",
  "processing_time": 0,
  "sensitive_items": [
    {
      "type": "<string>",
      "confidence": 0.0,
      "location": {"start": 0, "end": 0},
      "count": 1
    }
  ]
}`
}

// GetUserPrompt builds the user message for one document. When content is
// empty only the metadata is sent and the model must answer conservatively.
func GetUserPrompt(title, fileType, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this document and respond with the JSON per schema.\nTitle: %s\nFile type: %s\n", title, fileType)
	if content == "" {
		b.WriteString("Content: (not available, infer conservatively from metadata)")
		return b.String()
	}
	if utf8.RuneCountInString(content) > MaxContentChars {
		content = string([]rune(content)[:MaxContentChars])
	}
	b.WriteString("Content:\n")
	b.WriteString(content)
	return b.String()
}
