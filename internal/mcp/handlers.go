package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pdfview/pdfview/internal/client"
	"github.com/pdfview/pdfview/internal/viewer"
)

func (s *Server) handleListViewers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.client.List(ctx)
	if err != nil {
		return toolError("listing viewers", err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No documents are open."), nil
	}
	return jsonResult(list)
}

func (s *Server) handleOpenDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}

	st, err := s.client.Open(ctx, path, request.GetString("hash", ""))
	if err != nil {
		return toolError("opening "+path, err), nil
	}
	return jsonResult(st)
}

func (s *Server) handleForwardSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: source"), nil
	}
	pdf, err := request.RequireString("pdf")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: pdf"), nil
	}
	line := request.GetInt("line", 0)
	if line < 1 {
		return mcp.NewToolResultError("line must be a positive number"), nil
	}

	resp, err := s.client.ForwardSync(ctx, viewer.SyncRequest{
		Source: source,
		Line:   line,
		Column: request.GetInt("column", 1),
		PDF:    pdf,
	})
	if err != nil {
		return toolError("forward sync", err), nil
	}
	return jsonResult(resp)
}

func (s *Server) handleGetOutline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := request.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tag"), nil
	}

	outline, err := s.client.Outline(ctx, tag)
	if err != nil {
		return toolError("outline of "+tag, err), nil
	}
	if len(outline) == 0 {
		return mcp.NewToolResultText("The viewer has not reported an outline yet."), nil
	}
	return jsonResult(outline)
}

func (s *Server) handleScrollToDestination(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := request.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tag"), nil
	}
	dest, err := request.RequireString("dest")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: dest"), nil
	}

	sent, err := s.client.ScrollToDestination(ctx, tag, dest)
	if err != nil {
		return toolError("scrolling "+tag, err), nil
	}
	if !sent {
		return mcp.NewToolResultText("The viewer is still loading; it will scroll once ready."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Scrolled %s to %s.", tag, dest)), nil
}

func (s *Server) handleReloadAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.client.ReloadAll(ctx); err != nil {
		return toolError("reloading viewers", err), nil
	}
	return mcp.NewToolResultText("Reloaded all viewers."), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, client.ErrUnavailable) {
		return mcp.NewToolResultError("The pdfview daemon is not running. Start it with `pdfview server`.")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, err))
}
