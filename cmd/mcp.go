package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/pdfview/pdfview/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the running daemon's viewers to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Stdout carries the protocol.
		setupLogging(true)

		c, err := newClient()
		if err != nil {
			return err
		}

		mcpserver.Version = Version
		fmt.Fprintln(os.Stderr, "pdfview MCP server started on stdio")

		return mcpserver.NewServer(c).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
