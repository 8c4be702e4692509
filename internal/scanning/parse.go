package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// textLines is the JSON shape the LLM recognizers are asked to return
type textLines struct {
	Lines []string `json:"lines"`
}

const textLinesSchemaJSON = `{
  "type": "object",
  "required": ["lines"],
  "properties": {
    "lines": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

var textLinesSchema = jsonschema.MustCompileString("text_lines.json", textLinesSchemaJSON)

// parseTextLinesJSON parses the JSON transcription returned by an LLM
func parseTextLinesJSON(text string) ([]string, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if err := textLinesSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	var data textLines
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Models sometimes pack several visual lines into one element
	lines := make([]string, 0, len(data.Lines))
	for _, l := range data.Lines {
		lines = append(lines, splitLines(l)...)
	}
	return lines, nil
}
