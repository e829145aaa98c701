// Package mcp exposes a wallet session as MCP tools over streamable HTTP.
// Agents can read the projection, request a connection and manage the
// wallet registry; key material never crosses this surface.
package mcp

import (
	"fmt"
	"log/slog"
	"net/http"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/0xWizop/incubator-sub002"
)

// Tool names.
const (
	ToolStatus       = "session_status"
	ToolConnect      = "session_connect"
	ToolLock         = "session_lock"
	ToolSwitch       = "session_switch"
	ToolListWallets  = "wallet_list"
	ToolAddWallet    = "wallet_add"
	ToolRemoveWallet = "wallet_remove"
)

// Server wraps an MCP server whose tools operate on one Session.
type Server struct {
	mcpServer *mcpserver.MCPServer
	session   *walletsession.Session
	logger    *slog.Logger
	tools     []string
}

// NewServer creates an MCP server for session and registers its tools.
func NewServer(session *walletsession.Session, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(name, version),
		session:   session,
		logger:    logger,
	}
	s.registerTools()
	return s
}

func (s *Server) addTool(tool mcpproto.Tool, handler mcpserver.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}

// ToolNames returns the registered tool names in registration order.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.tools...)
}

// Handler returns the streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// Start serves MCP on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting mcp server", "addr", addr, "tools", len(s.tools))
	if err := http.ListenAndServe(addr, s.Handler()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
