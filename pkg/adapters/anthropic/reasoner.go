// Package anthropic implements the reasoning service on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/aretw0/agentwright/pkg/reasoning"
)

// Default models per tier.
const (
	DefaultReasonerModel = "claude-3-7-sonnet-latest"
	DefaultPrimaryModel  = "claude-3-5-sonnet-latest"
	DefaultSmallModel    = "claude-3-5-haiku-latest"
)

// Options configure the Anthropic reasoner.
type Options struct {
	Models    reasoning.Models
	MaxTokens int64
}

// Reasoner implements ports.Reasoner.
type Reasoner struct {
	client *anthropic.Client
	opts   Options
}

// NewReasoner creates a reasoner with its own client.
func NewReasoner(apiKey string, optFns ...func(o *Options)) *Reasoner {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return NewReasonerFromClient(&client, optFns...)
}

// NewReasonerFromClient creates a reasoner from an existing client.
func NewReasonerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Models: reasoning.Models{
			Reasoner: DefaultReasonerModel,
			Primary:  DefaultPrimaryModel,
			Small:    DefaultSmallModel,
		},
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reasoner{client: client, opts: opts}
}

// Run implements ports.Reasoner. Tool use blocks are answered with the
// request's tool handlers until the model stops asking.
func (r *Reasoner) Run(ctx context.Context, req reasoning.Request) (reasoning.Response, error) {
	prompt := reasoning.Message{Role: reasoning.RoleUser, Content: req.Prompt}
	log := append(append([]reasoning.Message(nil), req.History...), prompt)
	produced := []reasoning.Message{prompt}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.opts.Models.For(req.Agent.Tier())),
		MaxTokens: r.opts.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: reasoning.SystemPrompt(req.Agent, req.Deps)}},
	}
	if len(req.Tools) > 0 {
		params.Tools = toolParams(req.Tools)
	}

	for round := 0; ; round++ {
		params.Messages = buildMessages(log)
		resp, err := r.client.Messages.New(ctx, params)
		if err != nil {
			return reasoning.Response{}, fmt.Errorf("anthropic api error: %w", err)
		}

		answer := reasoning.Message{Role: reasoning.RoleAssistant}
		var text strings.Builder
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.AsText().Text)
			case "tool_use":
				tu := block.AsToolUse()
				args, err := json.Marshal(tu.Input)
				if err != nil {
					return reasoning.Response{}, fmt.Errorf("encode tool input: %w", err)
				}
				answer.ToolCalls = append(answer.ToolCalls, reasoning.ToolCall{
					ID:        tu.ID,
					Name:      tu.Name,
					Arguments: reasoning.RawArguments(string(args)),
				})
			}
		}
		answer.Content = text.String()
		produced = append(produced, answer)
		log = append(log, answer)

		if len(answer.ToolCalls) == 0 {
			return reasoning.Response{Text: answer.Content, NewMessages: produced}, nil
		}
		if round+1 >= reasoning.MaxToolRounds {
			return reasoning.Response{}, fmt.Errorf("%w: agent %s", reasoning.ErrToolRounds, req.Agent)
		}

		results := reasoning.CallTools(ctx, req.Tools, answer.ToolCalls)
		produced = append(produced, results...)
		log = append(log, results...)
	}
}

// buildMessages converts a message log into SDK messages. Consecutive tool
// results are folded into one user message, as the API expects.
func buildMessages(log []reasoning.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range log {
		switch m.Role {
		case reasoning.RoleTool:
			results = append(results, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, strings.HasPrefix(m.Content, "Error:")))
		case reasoning.RoleAssistant:
			flush()
			var content []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				content = append(content, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any = map[string]any{}
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						input = string(tc.Arguments)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		case reasoning.RoleSystem:
			// The system prompt travels in MessageNewParams.System.
		default:
			flush()
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	flush()
	return out
}

func toolParams(tools []reasoning.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if props, ok := t.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if required, ok := t.Parameters["required"].([]string); ok {
			schema.Required = required
		}
		out[i] = anthropic.ToolUnionParamOfTool(schema, t.Name)
		if t.Description != "" {
			out[i].OfTool.Description = anthropic.String(t.Description)
		}
	}
	return out
}
