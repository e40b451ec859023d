package domain

// StepKind identifies one of the step units of the conversation graph.
type StepKind string

const (
	StepTriage         StepKind = "triage"
	StepDefineScope    StepKind = "define_scope"
	StepExpert         StepKind = "expert"
	StepGetUserMessage StepKind = "get_user_message"
	StepRefineRouter   StepKind = "refine_router"
	StepRefinePrompt   StepKind = "refine_prompt"
	StepRefineAgent    StepKind = "refine_agent"
	StepFinish         StepKind = "finish"

	// StepEnd is not a runnable step. It marks the last snapshot of a
	// finished run and carries the terminal payload in StepRef.Output.
	StepEnd StepKind = "end"
)

// StepKinds lists the runnable kinds in declaration order.
func StepKinds() []StepKind {
	return []StepKind{
		StepTriage,
		StepDefineScope,
		StepExpert,
		StepGetUserMessage,
		StepRefineRouter,
		StepRefinePrompt,
		StepRefineAgent,
		StepFinish,
	}
}

// Valid reports whether k is a runnable kind or StepEnd.
func (k StepKind) Valid() bool {
	if k == StepEnd {
		return true
	}
	for _, known := range StepKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// StepRef is the serializable descriptor of a step. It is what a snapshot
// records as "the step to run next".
type StepRef struct {
	Kind StepKind `json:"kind"`

	// UserMessage is the message injected into Triage or GetUserMessage on resume.
	UserMessage string `json:"user_message,omitempty"`

	// CodeOutput is the expert answer handed to GetUserMessage.
	CodeOutput string `json:"code_output,omitempty"`

	// Output is the terminal payload. Only set when Kind is StepEnd.
	Output string `json:"output,omitempty"`
}

// Terminal reports whether the ref marks a finished run.
func (r StepRef) Terminal() bool {
	return r.Kind == StepEnd
}

// AwaitsInput reports whether the run must stop here and wait for the user.
// Triage and GetUserMessage are suspend points until a message is injected.
func (r StepRef) AwaitsInput() bool {
	return (r.Kind == StepTriage || r.Kind == StepGetUserMessage) && r.UserMessage == ""
}

// WithUserMessage returns a copy of r with msg injected.
func (r StepRef) WithUserMessage(msg string) StepRef {
	r.UserMessage = msg
	return r
}

// End is the terminal outcome of a step.
type End struct {
	Output string `json:"output"`
}

// StepSpec declares a node of the static conversation graph.
type StepSpec struct {
	Kind         StepKind   `json:"kind"`
	Successors   []StepKind `json:"successors,omitempty"`
	SuspendPoint bool       `json:"suspend_point,omitempty"`
	Terminal     bool       `json:"terminal,omitempty"`
}

// Allows reports whether next is a declared successor.
func (s StepSpec) Allows(next StepKind) bool {
	if next == StepEnd {
		return s.Terminal
	}
	for _, k := range s.Successors {
		if k == next {
			return true
		}
	}
	return false
}
