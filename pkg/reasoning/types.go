package reasoning

import (
	"context"
	"encoding/json"

	"github.com/aretw0/agentwright/pkg/domain"
)

// Agent identifies the specialized reasoning unit a step talks to.
type Agent string

const (
	AgentTriage        Agent = "triage"
	AgentScoper        Agent = "scoper"
	AgentExpert        Agent = "expert"
	AgentRouter        Agent = "router"
	AgentRefineRouter  Agent = "refine_router"
	AgentPromptRefiner Agent = "prompt_refiner"
	AgentAgentRefiner  Agent = "agent_refiner"
	AgentCloser        Agent = "closer"
)

// Tier selects which configured model serves an agent.
type Tier string

const (
	TierReasoner Tier = "reasoner"
	TierPrimary  Tier = "primary"
	TierSmall    Tier = "small"
)

// Tier returns the model tier an agent runs on.
func (a Agent) Tier() Tier {
	switch a {
	case AgentScoper:
		return TierReasoner
	case AgentRefineRouter:
		return TierSmall
	default:
		return TierPrimary
	}
}

// OutputKind tells the adapter how the answer must be shaped.
type OutputKind string

const (
	OutputText   OutputKind = "text"
	OutputTriage OutputKind = "triage" // JSON object matching TriageSchema
)

// Role of a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one entry of a conversation log.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolHandler executes a tool call with raw JSON arguments.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a function the model may call while answering.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
	Handler    ToolHandler
}

// Dependencies is the run context handed to an agent beside its prompt.
type Dependencies struct {
	UserIntent        domain.Intent
	Scope             string
	RefinementRequest string
	RefinedPrompt     string
	RefinedAgent      string
}

// Request is one call to the reasoning service.
type Request struct {
	Agent   Agent
	Prompt  string
	History []Message
	Deps    Dependencies
	Output  OutputKind
	Tools   []Tool
}

// Classification is the structured answer of the triage agent.
type Classification struct {
	Label          string `json:"intent"`
	UserRequest    string `json:"user_request"`
	Reasoning      string `json:"reasoning"`
	ResponseToUser string `json:"response_to_user,omitempty"`
}

// Response is what the reasoning service returns.
type Response struct {
	Text           string
	Classification *Classification
	// NewMessages holds the messages produced by this call, prompt included.
	// Steps persist them as one history blob.
	NewMessages []Message
}
