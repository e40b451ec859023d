/*
Package domain contains the core domain models of the agentwright engine.

It defines the conversation state that flows through the step graph, the
reducers that merge step output into that state, and the snapshots that make a
run resumable. The package is kept pure and free of I/O, following Hexagonal
Architecture principles: stores, reasoning services and front ends live behind
the interfaces in package ports.

# Key Entities

  - ConversationState: The typed record shared by every step of a run.
  - Delta: A step's partial output, keyed by Field.
  - Registry: Per-field reducers (replace by default, append for histories).
  - StepRef: The persisted descriptor of the step that will run next.
  - Snapshot: One immutable entry of a run's append-only log.
  - Result: What a caller gets back from an advance (Suspended or Terminal).
*/
package domain
