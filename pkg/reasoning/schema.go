package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// TriageSchema is the JSON Schema every triage answer must satisfy.
const TriageSchema = `{
  "type": "object",
  "required": ["intent", "user_request", "reasoning"],
  "properties": {
    "intent": {"type": "string", "enum": ["Development", "Q&A", "Chat"]},
    "user_request": {"type": "string"},
    "reasoning": {"type": "string"},
    "response_to_user": {"type": ["string", "null"]}
  }
}`

var (
	triageOnce   sync.Once
	triageSchema *jsonschema.Schema
	triageErr    error
)

func compiledTriageSchema() (*jsonschema.Schema, error) {
	triageOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(TriageSchema), &doc); err != nil {
			triageErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("triage.json", doc); err != nil {
			triageErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		triageSchema, triageErr = c.Compile("triage.json")
	})
	return triageSchema, triageErr
}

// DecodeTriage validates a raw triage answer against TriageSchema and decodes it.
// Markdown code fences around the JSON are tolerated.
func DecodeTriage(raw string) (*Classification, error) {
	raw = stripFence(raw)

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("triage answer is not json: %w", err)
	}
	schema, err := compiledTriageSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("triage answer rejected: %w", err)
	}

	var c Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode triage answer: %w", err)
	}
	return &c, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
