package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kevinpbuckley/blueprintd/internal/pintype"
	"github.com/kevinpbuckley/blueprintd/internal/query"
	"github.com/kevinpbuckley/blueprintd/internal/validation"
	"github.com/kevinpbuckley/blueprintd/internal/workspace"
)

// BlueprintServerDeps holds the dependencies for creating a BlueprintServer.
type BlueprintServerDeps struct {
	Workspace *workspace.Workspace
	Registry  pintype.Registry
	Validator *validation.PayloadValidator
	Query     *query.Engine
	Logger    *slog.Logger
}

// BlueprintServer wraps an MCP server with graph-editing tool handlers.
type BlueprintServer struct {
	workspace *workspace.Workspace
	compiler  *pintype.Compiler
	validator *validation.PayloadValidator
	query     *query.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewBlueprintServer creates a new BlueprintServer with all 7 tools registered.
func NewBlueprintServer(deps BlueprintServerDeps) *BlueprintServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	queryEngine := deps.Query
	if queryEngine == nil {
		queryEngine = query.NewEngine()
	}

	s := &BlueprintServer{
		workspace: deps.Workspace,
		compiler:  pintype.NewCompiler(deps.Registry),
		validator: deps.Validator,
		query:     queryEngine,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"blueprintd",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("blueprintd edits visual node-graph documents. Use blueprint.connect_pins and blueprint.disconnect_pins to wire nodes, blueprint.split_pin / blueprint.recombine_pin / blueprint.reset_pin_defaults to edit pin topology, blueprint.manage_function for parameters and local variables, and blueprint.query_graph to inspect a document with a jq expression."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *BlueprintServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *BlueprintServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 7 registered MCP tools as ServerTool entries.
func (s *BlueprintServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: connectTool(), Handler: s.handleConnect},
		{Tool: disconnectTool(), Handler: s.handleDisconnect},
		{Tool: splitTool(), Handler: s.handleSplit},
		{Tool: recombineTool(), Handler: s.handleRecombine},
		{Tool: resetDefaultsTool(), Handler: s.handleResetDefaults},
		{Tool: manageFunctionTool(), Handler: s.handleManageFunction},
		{Tool: queryGraphTool(), Handler: s.handleQueryGraph},
	}
}

// --- Tool definitions ---

func connectTool() mcp.Tool {
	return mcp.NewTool("blueprint.connect_pins",
		mcp.WithDescription("Connect pins in a node-graph document. Accepts a batch of source/target pairs; each pair succeeds or fails independently"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document to edit")),
		mcp.WithArray("connections", mcp.Required(), mcp.Description("Source/target pin pairs. Pin references accept pin_id, a 'node:pin' composite ref, or node_id + pin_name")),
		mcp.WithObject("defaults", mcp.Description("Batch-wide fallbacks: allow_conversion_node, allow_promotion, break_existing_links")),
	)
}

func disconnectTool() mcp.Tool {
	return mcp.NewTool("blueprint.disconnect_pins",
		mcp.WithDescription("Break links in a node-graph document. Each operation breaks one pin's link to a specific target, or all of its links"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document to edit")),
		mcp.WithArray("operations", mcp.Required(), mcp.Description("Disconnect operations: pin (reference), optional target (reference), break_all flag")),
	)
}

func splitTool() mcp.Tool {
	return mcp.NewTool("blueprint.split_pin",
		mcp.WithDescription("Split composite pins (vector, rotator, transform, color) into per-component sub-pins"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document to edit")),
		mcp.WithString("node", mcp.Required(), mcp.Description("Node identifier: GUID, short name, runtime id or display title")),
		mcp.WithArray("pin_names", mcp.Required(), mcp.Description("Names of the pins to split")),
	)
}

func recombineTool() mcp.Tool {
	return mcp.NewTool("blueprint.recombine_pin",
		mcp.WithDescription("Merge split sub-pins back into their parent pins, breaking sub-pin links"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document to edit")),
		mcp.WithString("node", mcp.Required(), mcp.Description("Node identifier: GUID, short name, runtime id or display title")),
		mcp.WithArray("pin_names", mcp.Required(), mcp.Description("Names of the pins (or their sub-pins) to recombine")),
	)
}

func resetDefaultsTool() mcp.Tool {
	return mcp.NewTool("blueprint.reset_pin_defaults",
		mcp.WithDescription("Reset pin default values to their autogenerated per-type defaults"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document to edit")),
		mcp.WithString("node", mcp.Required(), mcp.Description("Node identifier: GUID, short name, runtime id or display title")),
		mcp.WithArray("pin_names", mcp.Description("Names of the pins to reset (omit with reset_all)")),
		mcp.WithBoolean("reset_all", mcp.Description("Reset every input pin on the node")),
		mcp.WithBoolean("compile", mcp.Description("Recompile the document when anything changed")),
	)
}

func manageFunctionTool() mcp.Tool {
	return mcp.NewTool("blueprint.manage_function",
		mcp.WithDescription("List, create and delete functions, and edit their parameters and local variables"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document to edit")),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("list", "get", "create", "delete",
				"list_params", "add_param", "remove_param", "update_param",
				"list_locals", "add_local", "remove_local", "update_local"),
			mcp.Description("Operation to perform"),
		),
		mcp.WithString("function_name", mcp.Description("Function name (required for everything but list)")),
		mcp.WithString("param_name", mcp.Description("Parameter or local variable name")),
		mcp.WithString("direction", mcp.Enum("input", "out", "return"), mcp.Description("Parameter direction")),
		mcp.WithString("type", mcp.Description("Type descriptor, e.g. 'float', 'object:Widget', 'map<string,int>'")),
		mcp.WithString("default", mcp.Description("Default value")),
		mcp.WithString("new_name", mcp.Description("New name for update actions")),
		mcp.WithString("new_type", mcp.Description("New type descriptor for update actions")),
		mcp.WithBoolean("const", mcp.Description("Local variable const flag")),
		mcp.WithBoolean("reference", mcp.Description("Local variable reference flag")),
		mcp.WithBoolean("editable", mcp.Description("Local variable editable flag")),
	)
}

func queryGraphTool() mcp.Tool {
	return mcp.NewTool("blueprint.query_graph",
		mcp.WithDescription("Run a read-only jq expression over a document's JSON encoding (graphs, nodes, pins, links)"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document to inspect")),
		mcp.WithString("expression", mcp.Required(), mcp.Description("jq expression, e.g. '.graphs[].name' or '.links | length'")),
	)
}
