package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentwright"
	"github.com/aretw0/agentwright/pkg/adapters/memory"
	mcpadapter "github.com/aretw0/agentwright/pkg/adapters/mcp"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/reasoning"
)

func newClient(t *testing.T, script *reasoning.Scripted) *client.Client {
	t.Helper()
	eng, err := agentwright.New(memory.NewStore(), script)
	require.NoError(t, err)

	c, err := client.NewInProcessClient(mcpadapter.NewServer(eng, nil).MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "test-client", Version: "1.0.0"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c
}

func call(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func qaScript() *reasoning.Scripted {
	return reasoning.NewScripted().
		On(reasoning.AgentTriage, reasoning.Classify("Q&A", "")).
		On(reasoning.AgentExpert, reasoning.Say("ANSWER"))
}

func TestServer_ListsTools(t *testing.T) {
	c := newClient(t, qaScript())

	tools, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"advance", "inspect_run", "run_history", "list_runs", "get_graph"}, names)
}

func TestServer_AdvanceAndInspect(t *testing.T) {
	c := newClient(t, qaScript())

	res := call(t, c, "advance", map[string]any{"message": "how do tools work?"})
	require.False(t, res.IsError, text(t, res))

	var advanced mcpadapter.AdvanceResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &advanced))
	assert.NotEmpty(t, advanced.RunID, "a run id is minted when omitted")
	assert.Equal(t, "ANSWER", advanced.Output)
	assert.Equal(t, string(domain.ResultSuspended), advanced.Kind)
	assert.False(t, advanced.Terminal)

	// Polling with an empty message repeats the pending reply.
	res = call(t, c, "advance", map[string]any{"run_id": advanced.RunID})
	require.False(t, res.IsError, text(t, res))

	res = call(t, c, "inspect_run", map[string]any{"run_id": advanced.RunID})
	require.False(t, res.IsError)
	var head domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &head))
	assert.Equal(t, domain.StepGetUserMessage, head.Next.Kind)
	assert.Equal(t, domain.IntentQA, head.State.UserIntent)

	res = call(t, c, "run_history", map[string]any{"run_id": advanced.RunID})
	var snaps []domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &snaps))
	assert.Len(t, snaps, 2)

	res = call(t, c, "list_runs", nil)
	assert.JSONEq(t, `["`+advanced.RunID+`"]`, text(t, res))

	res = call(t, c, "get_graph", map[string]any{"run_id": advanced.RunID})
	assert.Contains(t, text(t, res), "class get_user_message current;")
}

func TestServer_ToolErrors(t *testing.T) {
	c := newClient(t, qaScript())

	res := call(t, c, "advance", map[string]any{"run_id": "fresh"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), domain.ErrEmptyMessage.Error())

	res = call(t, c, "inspect_run", map[string]any{"run_id": "missing"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), domain.ErrRunNotFound.Error())

	res = call(t, c, "inspect_run", nil)
	assert.True(t, res.IsError, "run_id is required")
}

func TestServer_GraphResource(t *testing.T) {
	c := newClient(t, qaScript())

	req := mcp.ReadResourceRequest{}
	req.Params.URI = mcpadapter.GraphURI
	res, err := c.ReadResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	contents, ok := mcp.AsTextResourceContents(res.Contents[0])
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(contents.Text, "graph TD"))
}
