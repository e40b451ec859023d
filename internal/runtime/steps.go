package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/reasoning"
)

// ChatFallbackReply is sent when triage finds no actionable intent and the
// reasoner did not phrase a reply itself.
const ChatFallbackReply = "I'm here to help you design and build AI agents. Tell me what you would like to build, or ask me a question about it."

const (
	refinePromptInstruction = "Based on the current conversation, refine the prompt for the agent."
	refineAgentInstruction  = "Based on the current conversation, refine the agent definition."
)

// Triage classifies the user's intent. It loops on itself (suspending) until
// the user asks for something actionable.
type Triage struct {
	UserMessage string
}

func (s Triage) Ref() domain.StepRef {
	return domain.StepRef{Kind: domain.StepTriage, UserMessage: s.UserMessage}
}

func (s Triage) Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error) {
	delta := domain.Delta{}
	msg := state.LatestUserMessage
	if s.UserMessage != "" {
		msg = s.UserMessage
		delta[domain.FieldLatestUserMessage] = msg
	}

	history, err := reasoning.DecodeHistory(state.TriageHistory)
	if err != nil {
		return Outcome{}, err
	}

	resp, err := env.Reasoner.Run(ctx, reasoning.Request{
		Agent:   reasoning.AgentTriage,
		Prompt:  msg,
		History: history,
		Output:  reasoning.OutputTriage,
	})
	if err != nil {
		return Outcome{}, err
	}

	c := resp.Classification
	if c == nil {
		if c, err = reasoning.DecodeTriage(resp.Text); err != nil {
			return Outcome{}, err
		}
	}

	intent, ok := reasoning.ParseIntent(c.Label)
	if !ok {
		env.Logger.Warn("unknown triage label, treating as chat", "label", c.Label)
		intent = domain.IntentChat
	}

	blob, err := reasoning.EncodeMessages(resp.NewMessages)
	if err != nil {
		return Outcome{}, err
	}
	delta[domain.FieldUserIntent] = intent
	delta[domain.FieldTriageHistory] = blob

	switch intent {
	case domain.IntentQA:
		return Outcome{Delta: delta, Next: Expert{}}, nil
	case domain.IntentDevelopment:
		return Outcome{Delta: delta, Next: DefineScope{}}, nil
	}

	reply := strings.TrimSpace(c.ResponseToUser)
	if reply == "" {
		reply = ChatFallbackReply
	}
	delta[domain.FieldLatestModelMessage] = reply
	return Outcome{Delta: delta, Next: Triage{}}, nil
}

// DefineScope drafts the scope document of the agent to build.
type DefineScope struct{}

func (DefineScope) Ref() domain.StepRef { return domain.StepRef{Kind: domain.StepDefineScope} }

func (DefineScope) Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error) {
	var pages []string
	if env.Docs != nil {
		var err error
		if pages, err = env.Docs.ListDocumentationPages(ctx); err != nil {
			return Outcome{}, fmt.Errorf("list documentation pages: %w", err)
		}
	}

	resp, err := env.Reasoner.Run(ctx, reasoning.Request{
		Agent:  reasoning.AgentScoper,
		Prompt: scopePrompt(state.LatestUserMessage, pages),
		Output: reasoning.OutputText,
	})
	if err != nil {
		return Outcome{}, err
	}

	blob, err := reasoning.EncodeMessages(resp.NewMessages)
	if err != nil {
		return Outcome{}, err
	}

	if env.Artifacts != nil {
		if err := env.Artifacts.WriteScope(ctx, env.RunID, resp.Text); err != nil {
			return Outcome{}, fmt.Errorf("write scope: %w", err)
		}
	}

	return Outcome{
		Delta: domain.Delta{
			domain.FieldScope:        resp.Text,
			domain.FieldScopeHistory: blob,
		},
		Next: Expert{},
	}, nil
}

func scopePrompt(request string, pages []string) string {
	var b strings.Builder
	b.WriteString("User AI Agent Request: ")
	b.WriteString(request)
	b.WriteString(`

Create a detailed scope document for the AI agent including:
- Architecture diagram
- Core components
- External dependencies
- Testing strategy
`)
	if len(pages) > 0 {
		b.WriteString("\nAlso based on these documentation pages available:\n\n")
		b.WriteString(strings.Join(pages, "\n"))
		b.WriteString("\n\nInclude a list of documentation pages that are relevant to creating this agent for the user in the scope document.\n")
	}
	return b.String()
}

// Expert answers the user, writing or discussing agent code.
type Expert struct{}

func (Expert) Ref() domain.StepRef { return domain.StepRef{Kind: domain.StepExpert} }

func (Expert) Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error) {
	history, err := reasoning.DecodeHistory(state.ExpertHistory)
	if err != nil {
		return Outcome{}, err
	}

	resp, err := env.Reasoner.Run(ctx, reasoning.Request{
		Agent:   reasoning.AgentExpert,
		Prompt:  state.LatestUserMessage,
		History: history,
		Deps: reasoning.Dependencies{
			UserIntent:    state.UserIntent,
			Scope:         state.Scope,
			RefinedPrompt: state.RefinedPrompt,
			RefinedAgent:  state.RefinedAgent,
		},
		Output: reasoning.OutputText,
		Tools:  DocumentationTools(env.Docs),
	})
	if err != nil {
		return Outcome{}, err
	}

	blob, err := reasoning.EncodeMessages(resp.NewMessages)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Delta: domain.Delta{
			domain.FieldExpertHistory:      blob,
			domain.FieldLatestModelMessage: resp.Text,
		},
		Next: GetUserMessage{CodeOutput: resp.Text},
	}, nil
}

// GetUserMessage waits for the user's reaction to the expert and routes it.
type GetUserMessage struct {
	UserMessage string
	CodeOutput  string
}

func (s GetUserMessage) Ref() domain.StepRef {
	return domain.StepRef{Kind: domain.StepGetUserMessage, UserMessage: s.UserMessage, CodeOutput: s.CodeOutput}
}

func (s GetUserMessage) Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error) {
	delta := domain.Delta{}
	msg := state.LatestUserMessage
	if s.UserMessage != "" {
		msg = s.UserMessage
		delta[domain.FieldLatestUserMessage] = msg
	}

	resp, err := env.Reasoner.Run(ctx, reasoning.Request{
		Agent:  reasoning.AgentRouter,
		Prompt: msg,
		Output: reasoning.OutputText,
	})
	if err != nil {
		return Outcome{}, err
	}

	route, ok := reasoning.ParseRoute(resp.Text)
	if !ok {
		env.Logger.Warn("unknown route label, continuing with expert", "label", resp.Text)
		route = reasoning.RouteContinue
	}

	switch route {
	case reasoning.RouteFinish:
		return Outcome{Delta: delta, Next: Finish{}}, nil
	case reasoning.RouteRefine:
		return Outcome{Delta: delta, Next: RefineRouter{}}, nil
	default:
		return Outcome{Delta: delta, Next: Expert{}}, nil
	}
}

// RefineRouter picks which refinement the user asked for.
type RefineRouter struct{}

func (RefineRouter) Ref() domain.StepRef { return domain.StepRef{Kind: domain.StepRefineRouter} }

func (RefineRouter) Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error) {
	resp, err := env.Reasoner.Run(ctx, reasoning.Request{
		Agent:  reasoning.AgentRefineRouter,
		Prompt: state.LatestUserMessage,
		Output: reasoning.OutputText,
	})
	if err != nil {
		return Outcome{}, err
	}

	refinement, ok := reasoning.ParseRefinement(resp.Text)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: refine router answered %q", domain.ErrUnmappedRoute, resp.Text)
	}
	if refinement == reasoning.RefinePrompt {
		return Outcome{Next: RefinePrompt{}}, nil
	}
	return Outcome{Next: RefineAgent{}}, nil
}

// RefinePrompt rewrites the system prompt of the agent being built.
type RefinePrompt struct{}

func (RefinePrompt) Ref() domain.StepRef { return domain.StepRef{Kind: domain.StepRefinePrompt} }

func (RefinePrompt) Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error) {
	history, err := reasoning.DecodeHistory(state.ExpertHistory)
	if err != nil {
		return Outcome{}, err
	}

	resp, err := env.Reasoner.Run(ctx, reasoning.Request{
		Agent:   reasoning.AgentPromptRefiner,
		Prompt:  refinePromptInstruction,
		History: history,
		Output:  reasoning.OutputText,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Delta: domain.Delta{domain.FieldRefinedPrompt: resp.Text},
		Next:  Expert{},
	}, nil
}

// RefineAgent rewrites the agent definition, checking it against the docs.
type RefineAgent struct{}

func (RefineAgent) Ref() domain.StepRef { return domain.StepRef{Kind: domain.StepRefineAgent} }

func (RefineAgent) Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error) {
	history, err := reasoning.DecodeHistory(state.ExpertHistory)
	if err != nil {
		return Outcome{}, err
	}

	resp, err := env.Reasoner.Run(ctx, reasoning.Request{
		Agent:   reasoning.AgentAgentRefiner,
		Prompt:  refineAgentInstruction,
		History: history,
		Deps:    reasoning.Dependencies{RefinementRequest: state.LatestUserMessage},
		Output:  reasoning.OutputText,
		Tools:   DocumentationTools(env.Docs),
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Delta: domain.Delta{domain.FieldRefinedAgent: resp.Text},
		Next:  Expert{},
	}, nil
}

// Finish closes the conversation with run instructions and a goodbye.
type Finish struct{}

func (Finish) Ref() domain.StepRef { return domain.StepRef{Kind: domain.StepFinish} }

func (Finish) Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error) {
	history, err := reasoning.DecodeHistory(state.ExpertHistory)
	if err != nil {
		return Outcome{}, err
	}

	resp, err := env.Reasoner.Run(ctx, reasoning.Request{
		Agent:   reasoning.AgentCloser,
		Prompt:  state.LatestUserMessage,
		History: history,
		Output:  reasoning.OutputText,
	})
	if err != nil {
		return Outcome{}, err
	}

	blob, err := reasoning.EncodeMessages(resp.NewMessages)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Delta: domain.Delta{
			domain.FieldExpertHistory:      blob,
			domain.FieldLatestModelMessage: resp.Text,
		},
		End: &domain.End{Output: resp.Text},
	}, nil
}
