// Package mcp exposes the running daemon to MCP clients over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/pdfview/pdfview/internal/client"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server whose tools drive the daemon's viewers.
type Server struct {
	client *client.Client
	mcp    *server.MCPServer
}

// NewServer creates an MCP server that forwards tool calls to the daemon
// behind c.
func NewServer(c *client.Client) *Server {
	s := &Server{client: c}

	s.mcp = server.NewMCPServer(
		"pdfview",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(listViewersTool, s.handleListViewers)
	s.mcp.AddTool(openDocumentTool, s.handleOpenDocument)
	s.mcp.AddTool(forwardSyncTool, s.handleForwardSync)
	s.mcp.AddTool(getOutlineTool, s.handleGetOutline)
	s.mcp.AddTool(scrollToDestinationTool, s.handleScrollToDestination)
	s.mcp.AddTool(reloadAllTool, s.handleReloadAll)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
