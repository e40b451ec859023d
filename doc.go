/*
Package agentwright is a resumable conversation engine for an assistant that
helps users design and build AI agents.

A conversation is a run: a state machine over a fixed graph of steps (triage,
scoping, expert, routing, refinement, closing). Every step delegates its
decision to a reasoning service and hands back a state delta plus the next
step. The engine folds the delta into the conversation state and appends a
snapshot to a durable log before moving on, so a run can stop at any point
and resume later in another process.

# Concept

The engine only suspends at two places: when triage needs more from the user
and when the expert waits for feedback. Each Advance call feeds one user
message and executes steps until the run suspends again or finishes.

# Usage

	store := file.New(".agentwright/runs")
	eng, err := agentwright.New(store, reasoning.Offline())
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Advance(ctx, "run-1", "Build me a weather agent")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Output)

	// Later, possibly after a restart:
	res, err = eng.Advance(ctx, "run-1", "Looks good, thanks!")

# Storage

Any ports.SnapshotStore works: pkg/adapters/file for local use,
pkg/adapters/redis for shared deployments, pkg/adapters/memory for tests.
Stores can be wrapped with pkg/persistence/middleware for encryption at rest
and PII masking.
*/
package agentwright
