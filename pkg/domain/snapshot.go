package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Snapshot is one immutable entry of a run's log: the state after a step
// and the step that runs next.
type Snapshot struct {
	// Seq starts at 1 and grows by exactly one per append.
	Seq   int64             `json:"seq"`
	RunID string            `json:"run_id"`
	State ConversationState `json:"state"`
	Next  StepRef           `json:"next"`

	CreatedAt time.Time `json:"created_at"`

	// InputDigest identifies the user message of the advance that wrote this
	// snapshot. A failed advance may only be retried with the same message,
	// and store middleware never rewrites this field.
	InputDigest string `json:"input_digest,omitempty"`

	// Sealed holds the encrypted state when an encrypting store middleware
	// is in use. State is zeroed on disk in that case.
	Sealed string `json:"sealed,omitempty"`
}

// Terminal reports whether this snapshot closes the run.
func (s Snapshot) Terminal() bool {
	return s.Next.Terminal()
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.State = s.State.Clone()
	return out
}

// DigestInput returns the InputDigest of a user message.
func DigestInput(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}
