package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallTools(t *testing.T) {
	tools := []Tool{
		{Name: "echo", Handler: func(_ context.Context, args json.RawMessage) (string, error) {
			return string(args), nil
		}},
		{Name: "broken", Handler: func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("disk on fire")
		}},
	}

	out := CallTools(context.Background(), tools, []ToolCall{
		{ID: "1", Name: "echo", Arguments: json.RawMessage(`{"a":1}`)},
		{ID: "2", Name: "echo"},
		{ID: "3", Name: "broken"},
		{ID: "4", Name: "missing"},
	})

	assert.Equal(t, []Message{
		{Role: RoleTool, Content: `{"a":1}`, ToolCallID: "1", Name: "echo"},
		{Role: RoleTool, Content: `{}`, ToolCallID: "2", Name: "echo"},
		{Role: RoleTool, Content: "Error: disk on fire", ToolCallID: "3", Name: "broken"},
		{Role: RoleTool, Content: `Error: unknown tool "missing"`, ToolCallID: "4", Name: "missing"},
	}, out)
}

func TestModelsFor(t *testing.T) {
	m := Models{Reasoner: "o3-mini", Primary: "gpt-4o"}
	assert.Equal(t, "o3-mini", m.For(AgentScoper.Tier()))
	assert.Equal(t, "gpt-4o", m.For(AgentExpert.Tier()))
	assert.Equal(t, "gpt-4o", m.For(AgentRefineRouter.Tier()), "small falls back to primary")
}

func TestRawArguments(t *testing.T) {
	assert.Nil(t, RawArguments(""))
	assert.Equal(t, json.RawMessage(`{"q":"x"}`), RawArguments(`{"q":"x"}`))
	assert.Equal(t, json.RawMessage(`"{broken"`), RawArguments(`{broken`))
}
