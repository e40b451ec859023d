package domain

import (
	"encoding/json"
	"fmt"
)

// Intent is the classified purpose of the user's conversation.
type Intent string

const (
	IntentUnset       Intent = ""
	IntentDevelopment Intent = "Development" // build or extend an agent
	IntentQA          Intent = "Q&A"         // ask or brainstorm
	IntentChat        Intent = "Chat"        // no actionable intent
)

// Valid reports whether i is one of the known intents (unset included).
func (i Intent) Valid() bool {
	switch i {
	case IntentUnset, IntentDevelopment, IntentQA, IntentChat:
		return true
	}
	return false
}

// ConversationState is the shared state of a single run.
//
// History fields hold one opaque blob per contributing step (a JSON encoded
// message log) and are only ever appended to.
type ConversationState struct {
	LatestUserMessage  string            `json:"latest_user_message"`
	LatestModelMessage string            `json:"latest_model_message"`
	UserIntent         Intent            `json:"user_intent"`
	Scope              string            `json:"scope"`
	TriageHistory      []json.RawMessage `json:"triage_history"`
	ExpertHistory      []json.RawMessage `json:"expert_history"`
	ScopeHistory       []json.RawMessage `json:"scope_history"`
	RefinedPrompt      string            `json:"refined_prompt"`
	RefinedTool        string            `json:"refined_tool"`
	RefinedAgent       string            `json:"refined_agent"`
}

// NewConversationState creates the initial state of a fresh run.
func NewConversationState(userMessage string) ConversationState {
	return ConversationState{
		LatestUserMessage: userMessage,
		TriageHistory:     []json.RawMessage{},
		ExpertHistory:     []json.RawMessage{},
		ScopeHistory:      []json.RawMessage{},
	}
}

// Clone returns a deep copy of the state.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.TriageHistory = cloneHistory(s.TriageHistory)
	out.ExpertHistory = cloneHistory(s.ExpertHistory)
	out.ScopeHistory = cloneHistory(s.ScopeHistory)
	return out
}

func cloneHistory(in []json.RawMessage) []json.RawMessage {
	if in == nil {
		return nil
	}
	out := make([]json.RawMessage, len(in))
	for i, blob := range in {
		out[i] = append(json.RawMessage(nil), blob...)
	}
	return out
}

// Field names a member of ConversationState. Values match the JSON keys.
type Field string

const (
	FieldLatestUserMessage  Field = "latest_user_message"
	FieldLatestModelMessage Field = "latest_model_message"
	FieldUserIntent         Field = "user_intent"
	FieldScope              Field = "scope"
	FieldTriageHistory      Field = "triage_history"
	FieldExpertHistory      Field = "expert_history"
	FieldScopeHistory       Field = "scope_history"
	FieldRefinedPrompt      Field = "refined_prompt"
	FieldRefinedTool        Field = "refined_tool"
	FieldRefinedAgent       Field = "refined_agent"
)

// fieldOrder is the canonical order in which deltas are folded.
var fieldOrder = []Field{
	FieldLatestUserMessage,
	FieldLatestModelMessage,
	FieldUserIntent,
	FieldScope,
	FieldTriageHistory,
	FieldExpertHistory,
	FieldScopeHistory,
	FieldRefinedPrompt,
	FieldRefinedTool,
	FieldRefinedAgent,
}

// Fields returns every state field in canonical order.
func Fields() []Field {
	return append([]Field(nil), fieldOrder...)
}

// Valid reports whether f names a ConversationState field.
func (f Field) Valid() bool {
	for _, known := range fieldOrder {
		if f == known {
			return true
		}
	}
	return false
}

// IsHistory reports whether f is one of the append-only history fields.
func (f Field) IsHistory() bool {
	return f == FieldTriageHistory || f == FieldExpertHistory || f == FieldScopeHistory
}

// Get returns the current value of a field.
func (s ConversationState) Get(f Field) (any, error) {
	switch f {
	case FieldLatestUserMessage:
		return s.LatestUserMessage, nil
	case FieldLatestModelMessage:
		return s.LatestModelMessage, nil
	case FieldUserIntent:
		return s.UserIntent, nil
	case FieldScope:
		return s.Scope, nil
	case FieldTriageHistory:
		return s.TriageHistory, nil
	case FieldExpertHistory:
		return s.ExpertHistory, nil
	case FieldScopeHistory:
		return s.ScopeHistory, nil
	case FieldRefinedPrompt:
		return s.RefinedPrompt, nil
	case FieldRefinedTool:
		return s.RefinedTool, nil
	case FieldRefinedAgent:
		return s.RefinedAgent, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
}

// Set assigns v to a field after checking its type.
func (s *ConversationState) Set(f Field, v any) error {
	if f.IsHistory() {
		h, ok := v.([]json.RawMessage)
		if !ok {
			return fieldTypeError(f, "[]json.RawMessage", v)
		}
		switch f {
		case FieldTriageHistory:
			s.TriageHistory = h
		case FieldExpertHistory:
			s.ExpertHistory = h
		case FieldScopeHistory:
			s.ScopeHistory = h
		}
		return nil
	}

	if f == FieldUserIntent {
		var intent Intent
		switch x := v.(type) {
		case Intent:
			intent = x
		case string:
			intent = Intent(x)
		default:
			return fieldTypeError(f, "Intent", v)
		}
		if !intent.Valid() {
			return fmt.Errorf("%w: unknown intent %q", ErrFieldType, intent)
		}
		s.UserIntent = intent
		return nil
	}

	str, ok := v.(string)
	if !ok {
		if !f.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
		return fieldTypeError(f, "string", v)
	}
	switch f {
	case FieldLatestUserMessage:
		s.LatestUserMessage = str
	case FieldLatestModelMessage:
		s.LatestModelMessage = str
	case FieldScope:
		s.Scope = str
	case FieldRefinedPrompt:
		s.RefinedPrompt = str
	case FieldRefinedTool:
		s.RefinedTool = str
	case FieldRefinedAgent:
		s.RefinedAgent = str
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

func fieldTypeError(f Field, want string, got any) error {
	return fmt.Errorf("%w: field %s expects %s, got %T", ErrFieldType, f, want, got)
}
