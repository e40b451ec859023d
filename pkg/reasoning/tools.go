package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxToolRounds bounds how many times a model may call tools in one request.
const MaxToolRounds = 8

// ErrToolRounds is returned when a model keeps calling tools past MaxToolRounds.
var ErrToolRounds = errors.New("too many tool rounds")

// Models names the model serving each tier.
type Models struct {
	Reasoner string
	Primary  string
	Small    string
}

// For returns the model of a tier, falling back to Primary.
func (m Models) For(t Tier) string {
	switch t {
	case TierReasoner:
		if m.Reasoner != "" {
			return m.Reasoner
		}
	case TierSmall:
		if m.Small != "" {
			return m.Small
		}
	}
	return m.Primary
}

// CallTools executes the calls against tools and returns one tool message
// per call, in order. A failing or unknown tool yields an error message for
// the model instead of failing the request.
func CallTools(ctx context.Context, tools []Tool, calls []ToolCall) []Message {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	out := make([]Message, 0, len(calls))
	for _, call := range calls {
		content := runTool(ctx, byName, call)
		out = append(out, Message{
			Role:       RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}
	return out
}

func runTool(ctx context.Context, tools map[string]Tool, call ToolCall) string {
	t, ok := tools[call.Name]
	if !ok || t.Handler == nil {
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	result, err := t.Handler(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// RawArguments turns the argument string of a provider tool call into JSON.
// Invalid JSON is kept as a JSON string so the history stays encodable.
func RawArguments(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}
