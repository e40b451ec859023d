package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNoScript is returned by Scripted when an agent has nothing left to say.
var ErrNoScript = errors.New("no scripted reply")

// Reply is one canned answer of a Scripted reasoner.
type Reply struct {
	Text           string
	Classification *Classification
	Err            error
	// Func, when set, computes the answer from the request.
	Func func(Request) (Response, error)
}

// Say answers with plain text.
func Say(text string) Reply { return Reply{Text: text} }

// Classify answers a triage request.
func Classify(label, responseToUser string) Reply {
	return Reply{Classification: &Classification{
		Label:          label,
		Reasoning:      "scripted",
		ResponseToUser: responseToUser,
	}}
}

// Fail answers with an error.
func Fail(err error) Reply { return Reply{Err: err} }

// Scripted is a deterministic reasoner. Replies are consumed per agent in
// order; once an agent's queue is empty its default reply, if any, is used.
type Scripted struct {
	mu       sync.Mutex
	queues   map[Agent][]Reply
	defaults map[Agent]Reply
	calls    []Request
}

// NewScripted returns an empty script.
func NewScripted() *Scripted {
	return &Scripted{
		queues:   make(map[Agent][]Reply),
		defaults: make(map[Agent]Reply),
	}
}

// On queues replies for an agent.
func (s *Scripted) On(agent Agent, replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[agent] = append(s.queues[agent], replies...)
	return s
}

// Default sets the reply used once the agent's queue is exhausted.
func (s *Scripted) Default(agent Agent, reply Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[agent] = reply
	return s
}

// Run implements the reasoning service contract.
func (s *Scripted) Run(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)
	reply, ok := s.next(req.Agent)
	s.mu.Unlock()
	if !ok {
		return Response{}, fmt.Errorf("%w for agent %s", ErrNoScript, req.Agent)
	}

	if reply.Func != nil {
		return reply.Func(req)
	}
	if reply.Err != nil {
		return Response{}, reply.Err
	}

	resp := Response{Text: reply.Text, Classification: reply.Classification}
	answer := reply.Text
	if reply.Classification != nil {
		data, err := json.Marshal(reply.Classification)
		if err != nil {
			return Response{}, err
		}
		answer = string(data)
		if resp.Text == "" {
			resp.Text = answer
		}
	}
	resp.NewMessages = Exchange(req.Prompt, answer)
	return resp, nil
}

func (s *Scripted) next(agent Agent) (Reply, bool) {
	if q := s.queues[agent]; len(q) > 0 {
		s.queues[agent] = q[1:]
		return q[0], true
	}
	reply, ok := s.defaults[agent]
	return reply, ok
}

// Calls returns the requests received for an agent, or all requests when
// agent is empty.
func (s *Scripted) Calls(agent Agent) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, c := range s.calls {
		if agent == "" || c.Agent == agent {
			out = append(out, c)
		}
	}
	return out
}

// Offline returns a Scripted reasoner that answers every agent with simple
// keyword heuristics. It lets the CLI run without network access.
func Offline() *Scripted {
	s := NewScripted()
	s.Default(AgentTriage, Reply{Func: func(req Request) (Response, error) {
		text := strings.ToLower(req.Prompt)
		c := &Classification{UserRequest: req.Prompt, Reasoning: "keyword heuristic"}
		switch {
		case strings.Contains(text, "build"), strings.Contains(text, "create"), strings.Contains(text, "agent"):
			c.Label = "Development"
		case strings.Contains(text, "?"), strings.Contains(text, "how"), strings.Contains(text, "what"):
			c.Label = "Q&A"
		default:
			c.Label = "Chat"
			c.ResponseToUser = "I can help you design and build AI agents. What would you like to build?"
		}
		data, _ := json.Marshal(c)
		return Response{Text: string(data), Classification: c, NewMessages: Exchange(req.Prompt, string(data))}, nil
	}})
	echo := func(prefix string) Reply {
		return Reply{Func: func(req Request) (Response, error) {
			out := prefix + firstLine(req.Prompt)
			return Response{Text: out, NewMessages: Exchange(req.Prompt, out)}, nil
		}}
	}
	s.Default(AgentScoper, echo("# Scope\n\n"))
	s.Default(AgentExpert, echo("Here is a first take on: "))
	s.Default(AgentPromptRefiner, echo("Refined prompt for: "))
	s.Default(AgentAgentRefiner, echo("Refined agent for: "))
	s.Default(AgentCloser, echo("Run your agent with `go run .` Goodbye! "))
	s.Default(AgentRouter, Reply{Func: func(req Request) (Response, error) {
		text := strings.ToLower(req.Prompt)
		route := RouteContinue
		switch {
		case strings.Contains(text, "bye"), strings.Contains(text, "finish"), strings.Contains(text, "done"):
			route = RouteFinish
		case strings.Contains(text, "refine"):
			route = RouteRefine
		}
		return Response{Text: string(route), NewMessages: Exchange(req.Prompt, string(route))}, nil
	}})
	s.Default(AgentRefineRouter, Reply{Func: func(req Request) (Response, error) {
		out := string(RefineAgent)
		if strings.Contains(strings.ToLower(req.Prompt), "prompt") {
			out = string(RefinePrompt)
		}
		return Response{Text: out, NewMessages: Exchange(req.Prompt, out)}, nil
	}})
	return s
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
