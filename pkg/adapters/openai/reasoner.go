// Package openai implements the reasoning service and the documentation
// embedder on the OpenAI Chat Completions and Embeddings APIs.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/aretw0/agentwright/pkg/reasoning"
)

// Default models per tier.
const (
	DefaultReasonerModel = "o3-mini"
	DefaultPrimaryModel  = "gpt-4o"
	DefaultSmallModel    = "gpt-4.1-mini"
)

// Options configure the OpenAI reasoner.
type Options struct {
	Models              reasoning.Models
	MaxCompletionTokens int64
}

// Reasoner implements ports.Reasoner. Tool calls requested by the model are
// executed with the request's tool handlers until the model answers in text.
type Reasoner struct {
	client *openai.Client
	opts   Options
}

// NewReasoner creates a reasoner with its own client.
func NewReasoner(apiKey string, optFns ...func(o *Options)) *Reasoner {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewReasonerFromClient(&client, optFns...)
}

// NewReasonerFromClient creates a reasoner from an existing client.
func NewReasonerFromClient(client *openai.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Models: reasoning.Models{
			Reasoner: DefaultReasonerModel,
			Primary:  DefaultPrimaryModel,
			Small:    DefaultSmallModel,
		},
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reasoner{client: client, opts: opts}
}

// Run implements ports.Reasoner.
func (r *Reasoner) Run(ctx context.Context, req reasoning.Request) (reasoning.Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(reasoning.SystemPrompt(req.Agent, req.Deps)),
	}
	for _, m := range req.History {
		messages = append(messages, toParam(m))
	}

	prompt := reasoning.Message{Role: reasoning.RoleUser, Content: req.Prompt}
	messages = append(messages, toParam(prompt))
	produced := []reasoning.Message{prompt}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               openai.ChatModel(r.opts.Models.For(req.Agent.Tier())),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
	}
	if len(req.Tools) > 0 {
		params.Tools = toolParams(req.Tools)
	}

	for round := 0; ; round++ {
		resp, err := r.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return reasoning.Response{}, fmt.Errorf("openai api error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return reasoning.Response{}, fmt.Errorf("no choices returned")
		}

		msg := resp.Choices[0].Message
		answer := reasoning.Message{Role: reasoning.RoleAssistant, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			answer.ToolCalls = append(answer.ToolCalls, reasoning.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: reasoning.RawArguments(tc.Function.Arguments),
			})
		}
		produced = append(produced, answer)

		if len(answer.ToolCalls) == 0 {
			return reasoning.Response{Text: msg.Content, NewMessages: produced}, nil
		}
		if round+1 >= reasoning.MaxToolRounds {
			return reasoning.Response{}, fmt.Errorf("%w: agent %s", reasoning.ErrToolRounds, req.Agent)
		}

		results := reasoning.CallTools(ctx, req.Tools, answer.ToolCalls)
		produced = append(produced, results...)
		params.Messages = append(params.Messages, toParam(answer))
		for _, res := range results {
			params.Messages = append(params.Messages, toParam(res))
		}
	}
}

// toParam converts a logged message into an SDK message.
func toParam(m reasoning.Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case reasoning.RoleSystem:
		return openai.SystemMessage(m.Content)
	case reasoning.RoleTool:
		return openai.ToolMessage(m.Content, m.ToolCallID)
	case reasoning.RoleAssistant:
		if len(m.ToolCalls) == 0 {
			return openai.AssistantMessage(m.Content)
		}
		calls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			calls[i] = openai.ChatCompletionMessageToolCallParam{
				ID:   tc.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: calls,
		}}
	default:
		return openai.UserMessage(m.Content)
	}
}

func toolParams(tools []reasoning.Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}
