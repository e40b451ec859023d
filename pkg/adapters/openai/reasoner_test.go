package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentwright/pkg/adapters/openai"
	"github.com/aretw0/agentwright/pkg/reasoning"
)

// fakeAPI answers chat completions from a queue and records request bodies.
type fakeAPI struct {
	mu       sync.Mutex
	replies  []string
	requests []map[string]any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(body, &req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := `{"id":"x","object":"chat.completion","created":0,"model":"m","choices":[]}`
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func completion(message string) string {
	return `{"id":"x","object":"chat.completion","created":0,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":` + message + `}]}`
}

func newClient(t *testing.T, api http.Handler) *sdk.Client {
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	client := sdk.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	return &client
}

func TestReasoner_TextAnswer(t *testing.T) {
	api := &fakeAPI{replies: []string{completion(`{"role":"assistant","content":"SCOPE"}`)}}
	r := openai.NewReasonerFromClient(newClient(t, api))

	resp, err := r.Run(context.Background(), reasoning.Request{
		Agent:   reasoning.AgentScoper,
		Prompt:  "build a bot",
		History: reasoning.Exchange("earlier", "answer"),
	})
	require.NoError(t, err)
	assert.Equal(t, "SCOPE", resp.Text)
	assert.Equal(t, reasoning.Exchange("build a bot", "SCOPE"), resp.NewMessages)

	require.Len(t, api.requests, 1)
	assert.Equal(t, openai.DefaultReasonerModel, api.requests[0]["model"], "scoper runs on the reasoner tier")
	msgs := api.requests[0]["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[3].(map[string]any)["role"])
}

func TestReasoner_ToolLoop(t *testing.T) {
	api := &fakeAPI{replies: []string{
		completion(`{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"q\":\"tools\"}"}}]}`),
		completion(`{"role":"assistant","content":"Use tools."}`),
	}}
	r := openai.NewReasonerFromClient(newClient(t, api), func(o *openai.Options) {
		o.Models.Primary = "gpt-test"
	})

	var got string
	tool := reasoning.Tool{
		Name:        "lookup",
		Description: "look things up",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(_ context.Context, args json.RawMessage) (string, error) {
			got = string(args)
			return "chunk", nil
		},
	}

	resp, err := r.Run(context.Background(), reasoning.Request{
		Agent:  reasoning.AgentExpert,
		Prompt: "how do tools work?",
		Tools:  []reasoning.Tool{tool},
	})
	require.NoError(t, err)
	assert.Equal(t, "Use tools.", resp.Text)
	assert.JSONEq(t, `{"q":"tools"}`, got)

	require.Len(t, resp.NewMessages, 4)
	assert.Equal(t, reasoning.RoleTool, resp.NewMessages[2].Role)
	assert.Equal(t, "call_1", resp.NewMessages[2].ToolCallID)
	assert.Equal(t, "chunk", resp.NewMessages[2].Content)

	_, err = reasoning.EncodeMessages(resp.NewMessages)
	require.NoError(t, err)

	require.Len(t, api.requests, 2)
	assert.Equal(t, "gpt-test", api.requests[1]["model"])
	assert.NotEmpty(t, api.requests[0]["tools"])
	second := api.requests[1]["messages"].([]any)
	assert.Equal(t, "tool", second[len(second)-1].(map[string]any)["role"])
}

func TestReasoner_ToolRoundLimit(t *testing.T) {
	call := completion(`{"role":"assistant","content":"","tool_calls":[{"id":"c","type":"function","function":{"name":"lookup","arguments":"{}"}}]}`)
	api := &fakeAPI{}
	for i := 0; i < reasoning.MaxToolRounds+1; i++ {
		api.replies = append(api.replies, call)
	}
	r := openai.NewReasonerFromClient(newClient(t, api))

	_, err := r.Run(context.Background(), reasoning.Request{
		Agent:  reasoning.AgentExpert,
		Prompt: "loop",
		Tools: []reasoning.Tool{{Name: "lookup", Handler: func(context.Context, json.RawMessage) (string, error) {
			return "again", nil
		}}},
	})
	assert.ErrorIs(t, err, reasoning.ErrToolRounds)
	assert.Len(t, api.requests, reasoning.MaxToolRounds)
}

func TestReasoner_NoChoices(t *testing.T) {
	r := openai.NewReasonerFromClient(newClient(t, &fakeAPI{}))
	_, err := r.Run(context.Background(), reasoning.Request{Agent: reasoning.AgentCloser, Prompt: "bye"})
	assert.Error(t, err)
}

func TestEmbedder(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	})
	e := openai.NewEmbedderFromClient(newClient(t, api), "")

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)

	none, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}
