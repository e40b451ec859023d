package domain

// ResultKind tells whether an advance stopped to wait or finished the run.
type ResultKind string

const (
	ResultSuspended ResultKind = "suspended"
	ResultTerminal  ResultKind = "terminal"
)

// Result is returned by an advance.
type Result struct {
	Kind   ResultKind `json:"kind"`
	RunID  string     `json:"run_id"`
	Output string     `json:"output"`

	// Seq is the sequence number of the latest snapshot of the run.
	Seq int64 `json:"seq"`

	// Step is the pending step (or StepEnd for terminal results).
	Step StepKind `json:"step"`
}

// Suspended reports whether the run is waiting for the next user message.
func (r Result) Suspended() bool {
	return r.Kind == ResultSuspended
}
