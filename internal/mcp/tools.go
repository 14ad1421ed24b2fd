package mcp

import "github.com/mark3labs/mcp-go/mcp"

// listViewersTool defines the list_viewers MCP tool.
var listViewersTool = mcp.NewTool("list_viewers",
	mcp.WithDescription("List the PDF documents currently open in pdfview, with their tags and refresh state."),
)

// openDocumentTool defines the open_document MCP tool.
var openDocumentTool = mcp.NewTool("open_document",
	mcp.WithDescription("Open a PDF in a viewer, or bring its existing viewer forward."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Absolute path of the PDF file"),
	),
	mcp.WithString("hash",
		mcp.Description("Named destination or fragment to show, e.g. page=3"),
	),
)

var forwardSyncTool = mcp.NewTool("forward_sync",
	mcp.WithDescription("Scroll the viewer of a PDF to the output of a source line using synctex."),
	mcp.WithString("source",
		mcp.Required(),
		mcp.Description("Path of the TeX source file"),
	),
	mcp.WithNumber("line",
		mcp.Required(),
		mcp.Description("One-based source line"),
	),
	mcp.WithNumber("column",
		mcp.Description("One-based source column (default 1)"),
	),
	mcp.WithString("pdf",
		mcp.Required(),
		mcp.Description("Path of the PDF built from the source"),
	),
)

var getOutlineTool = mcp.NewTool("get_outline",
	mcp.WithDescription("Get the outline (table of contents) reported by a viewer."),
	mcp.WithString("tag",
		mcp.Required(),
		mcp.Description("Viewer tag from list_viewers"),
	),
)

var scrollToDestinationTool = mcp.NewTool("scroll_to_destination",
	mcp.WithDescription("Scroll a viewer to a named destination of its document."),
	mcp.WithString("tag",
		mcp.Required(),
		mcp.Description("Viewer tag from list_viewers"),
	),
	mcp.WithString("dest",
		mcp.Required(),
		mcp.Description("Named destination"),
	),
)

// reloadAllTool defines the reload_all MCP tool.
var reloadAllTool = mcp.NewTool("reload_all",
	mcp.WithDescription("Fully reload every open viewer."),
)
