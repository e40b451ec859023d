/*
Package ports defines the driven ports (interfaces) of the agentwright engine.

These interfaces decouple the step graph from external implementations, allowing
the engine to work with various snapshot backends, reasoning services and
documentation indexes.

# Key Interfaces

  - SnapshotStore: Persists the append-only snapshot log of each run.
  - Reasoner: The reasoning service every step delegates its decision to.
  - DocumentIndex: Documentation retrieval used for scoping and as expert tools.
  - ArtifactSink: Receives side artifacts such as the scope document.
  - DistributedLocker: Coordinates concurrent access to a run across replicas.
*/
package ports
