package agentwright_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/agentwright"
	"github.com/aretw0/agentwright/pkg/adapters/memory"
	"github.com/aretw0/agentwright/pkg/reasoning"
)

// ExampleNew demonstrates a scripted conversation against an in-memory store.
// Swap the script for an OpenAI or Anthropic reasoner to talk to a real model.
func ExampleNew() {
	script := reasoning.NewScripted().
		On(reasoning.AgentTriage, reasoning.Classify("Development", "")).
		On(reasoning.AgentScoper, reasoning.Say("# Scope: a weather agent")).
		On(reasoning.AgentExpert, reasoning.Say("Here is your weather agent.")).
		On(reasoning.AgentRouter, reasoning.Say("finish_conversation")).
		On(reasoning.AgentCloser, reasoning.Say("Run it with `go run .`"))

	engine, err := agentwright.New(memory.NewStore(), script)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, err := engine.Advance(ctx, "demo", "build me a weather agent")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("[%s] %s\n", res.Kind, res.Output)

	// Polling a suspended run returns the same reply and writes nothing.
	res, _ = engine.Advance(ctx, "demo", "")
	fmt.Printf("[%s] seq=%d\n", res.Kind, res.Seq)

	res, err = engine.Advance(ctx, "demo", "perfect, thanks")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("[%s] %s\n", res.Kind, res.Output)

	// Output:
	// [suspended] Here is your weather agent.
	// [suspended] seq=3
	// [terminal] Run it with `go run .`
}
