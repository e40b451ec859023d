package reasoning

import (
	"strings"

	"github.com/aretw0/agentwright/pkg/domain"
)

const (
	triageInstructions = `Your goal is to identify the user request intent among the following options:
1. "Q&A": the user is requesting specific information or brainstorming ideas.
2. "Development": the user is requesting to develop, build or add features to an AI agent.
3. "Chat": the request is conversational and no specific intent is identified.

Answer with a single JSON object and nothing else:
{"intent": "...", "user_request": "...", "reasoning": "...", "response_to_user": "..."}
Set "response_to_user" only for "Chat": a cordial reply reminding the user that you help build AI agents.`

	scoperInstructions = `You are an expert at coding AI agents and defining the scope for doing so.`

	coderInstructions = `You are an expert AI agent engineer. You write complete, working agent code
using the documentation available through your tools. Always check the documentation
before writing code and say so when it does not cover what the user asks.`

	docsInstructions = `You are a documentation expert. Answer questions about building AI agents
using the documentation available through your tools. Start with retrieval, then look
at the page list and read the pages you need.`

	routerInstructions = `Your job is to route the user message either to the end of the conversation
or to continue coding the AI agent.

If the user wants to end the conversation, respond with just the text "finish_conversation".
If the user wants to continue coding the AI agent, respond with just the text "coder_agent".
If the user asks specifically to "refine" the agent, respond with just the text "refine".`

	refineRouterInstructions = `Your job is to decide which of the following categories the user's request falls into:
1. "refine_prompt": for requests about refining the prompt of the agent.
2. "refine_agent": for requests about refining the agent definition.

Respond only with the category name.`

	promptRefinerInstructions = `You are an expert at writing system prompts for AI agents. Using the
conversation so far, produce an improved system prompt for the agent being built.
Output the prompt and nothing else.`

	agentRefinerInstructions = `You are an AI agent engineer specialized in refining agent definitions in code.
Make sure the dependencies, the model settings and the prompt wiring of the agent are
configured correctly. Use the documentation tools to confirm the setup and only change
the definition where it does not align with the documentation.
Output the agent dependency and definition code if it needs to change and nothing else.`

	closerInstructions = `Your job is to end a conversation for creating an AI agent by giving
instructions for how to execute the agent and then saying a nice goodbye to the user.`
)

// SystemPrompt returns the instructions for an agent given the run context.
func SystemPrompt(agent Agent, deps Dependencies) string {
	switch agent {
	case AgentTriage:
		return triageInstructions
	case AgentScoper:
		return scoperInstructions
	case AgentExpert:
		var b strings.Builder
		if deps.UserIntent == domain.IntentDevelopment {
			b.WriteString(coderInstructions)
		} else {
			b.WriteString(docsInstructions)
		}
		appendSection(&b, "Scope document", deps.Scope)
		appendSection(&b, "Refined system prompt for the agent", deps.RefinedPrompt)
		appendSection(&b, "Refined agent definition", deps.RefinedAgent)
		return b.String()
	case AgentRouter:
		return routerInstructions
	case AgentRefineRouter:
		return refineRouterInstructions
	case AgentPromptRefiner:
		return promptRefinerInstructions
	case AgentAgentRefiner:
		var b strings.Builder
		b.WriteString(agentRefinerInstructions)
		appendSection(&b, "Refinement request", deps.RefinementRequest)
		return b.String()
	case AgentCloser:
		return closerInstructions
	}
	return ""
}

func appendSection(b *strings.Builder, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	b.WriteString("\n\n## ")
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(body)
}
