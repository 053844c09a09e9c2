// Package mcpserver exposes the toolbox over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lazypower/mnemo/internal/tools"
)

// New builds an MCP server with one MCP tool per toolbox tool.
func New(tb *tools.Toolbox, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"mnemo",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(sessionHooks(tb.Sessions())),
	)
	for _, t := range tb.Tools() {
		s.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, t.InputSchema), Handler(tb, t.Name))
	}
	return s
}

// ServeStdio runs the server on stdin/stdout until the input closes.
func ServeStdio(tb *tools.Toolbox, version string) error {
	return server.ServeStdio(New(tb, version))
}

// Handler adapts a toolbox tool to an MCP tool handler. The tool result is
// returned as JSON text; failed results are flagged with IsError.
func Handler(tb *tools.Toolbox, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := tb.Call(ctx, sessionID(ctx), name, req.GetArguments())

		b, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		out := mcp.NewToolResultText(string(b))
		out.IsError = !res.Success()
		return out, nil
	}
}

// sessionHooks drops a client's session state when the client goes away.
func sessionHooks(sessions *tools.Sessions) *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(ctx context.Context, cs server.ClientSession) {
		sessions.Forget(cs.SessionID())
	})
	return hooks
}

func sessionID(ctx context.Context) string {
	if cs := server.ClientSessionFromContext(ctx); cs != nil {
		return cs.SessionID()
	}
	return tools.DefaultSessionID
}
