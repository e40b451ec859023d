package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/agentwright"
	"github.com/aretw0/agentwright/internal/presentation/graph"
	"github.com/aretw0/agentwright/pkg/domain"
)

// GraphURI is the resource holding the Mermaid step graph.
const GraphURI = "agentwright://graph"

// AdvanceResponse is the structured result of the advance tool.
type AdvanceResponse struct {
	RunID    string `json:"run_id" jsonschema_description:"Run to pass back on the next advance"`
	Kind     string `json:"kind" jsonschema_description:"suspended while waiting for the user, terminal once finished"`
	Output   string `json:"output" jsonschema_description:"Reply to show to the user"`
	Step     string `json:"step" jsonschema_description:"Pending step of the run"`
	Seq      int64  `json:"seq" jsonschema_description:"Sequence number of the latest snapshot"`
	Terminal bool   `json:"terminal" jsonschema_description:"Indicates if the run has finished"`
}

// Engine defines the operations the MCP server exposes.
type Engine interface {
	Advance(ctx context.Context, runID, message string) (domain.Result, error)
	Head(ctx context.Context, runID string) (*domain.Snapshot, error)
	History(ctx context.Context, runID string) ([]domain.Snapshot, error)
	Runs(ctx context.Context) ([]string, error)
	Graph() []domain.StepSpec
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("agentwright-mcp", strings.TrimSpace(agentwright.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when
// ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: advance
	advanceTool := mcp.NewTool("advance",
		mcp.WithDescription("Send a message to the agent builder. Omit run_id to start a new conversation; "+
			"pass the returned run_id to continue it. An empty message returns the pending reply."),
		mcp.WithString("run_id", mcp.Description("Run to continue (optional for a new run)")),
		mcp.WithString("message", mcp.Description("User message")),
		mcp.WithOutputSchema[AdvanceResponse](),
	)
	s.mcpServer.AddTool(advanceTool, mcp.NewStructuredToolHandler(s.handleAdvance))

	// TOOL: inspect_run
	s.mcpServer.AddTool(mcp.NewTool("inspect_run",
		mcp.WithDescription("Return the latest snapshot of a run: its conversation state and pending step."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run to inspect")),
	), s.handleInspect)

	// TOOL: run_history
	s.mcpServer.AddTool(mcp.NewTool("run_history",
		mcp.WithDescription("Return every snapshot of a run, oldest first."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run to inspect")),
	), s.handleHistory)

	// TOOL: list_runs
	s.mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the ids of stored runs."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runs, err := s.engine.Runs(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		sort.Strings(runs)
		return jsonResult(runs)
	})

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the step graph as a Mermaid flowchart. With run_id, the run's path is highlighted."),
		mcp.WithString("run_id", mcp.Description("Run to overlay (optional)")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var overlay *graph.GraphOverlay
		if runID := request.GetString("run_id", ""); runID != "" {
			snaps, err := s.engine.History(ctx, runID)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("history failed: %v", err)), nil
			}
			overlay = graph.OverlayFromHistory(snaps)
		}
		return mcp.NewToolResultText(graph.GenerateMermaid(s.engine.Graph(), overlay)), nil
	})
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AdvanceResponse, error) {
	runID, _ := args["run_id"].(string)
	message, _ := args["message"].(string)
	if runID == "" {
		runID = uuid.NewString()
	}

	res, err := s.engine.Advance(ctx, runID, message)
	if err != nil {
		if domain.IsPrecondition(err) {
			s.logger.Warn("MCP Advance: rejected", "run_id", runID, "err", err)
		} else {
			s.logger.Error("MCP Advance: failed", "run_id", runID, "err", err)
		}
		return AdvanceResponse{}, fmt.Errorf("advance failed: %w", err)
	}

	return AdvanceResponse{
		RunID:    res.RunID,
		Kind:     string(res.Kind),
		Output:   res.Output,
		Step:     string(res.Step),
		Seq:      res.Seq,
		Terminal: res.Kind == domain.ResultTerminal,
	}, nil
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	head, err := s.engine.Head(ctx, runID)
	if err != nil {
		return toolError("inspect", err), nil
	}
	return jsonResult(head)
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snaps, err := s.engine.History(ctx, runID)
	if err != nil {
		return toolError("history", err), nil
	}
	return jsonResult(snaps)
}

func (s *Server) registerResources() {
	// EXPOSE: agentwright://graph
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Step Graph",
		mcp.WithResourceDescription("Mermaid flowchart of the conversation steps"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/plain",
				Text:     graph.GenerateMermaid(s.engine.Graph(), nil),
			},
		}, nil
	})
}

func toolError(op string, err error) *mcp.CallToolResult {
	if errors.Is(err, domain.ErrRunNotFound) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
