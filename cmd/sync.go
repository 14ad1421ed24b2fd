package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdfview/pdfview/internal/viewer"
)

var syncCmd = &cobra.Command{
	Use:   "sync SOURCE:LINE[:COLUMN] PDF",
	Short: "Scroll a PDF's viewer to a source position",
	Long: `Runs a forward synctex search for the one-based LINE (and COLUMN) of
SOURCE and scrolls the viewer of PDF there, opening it if needed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, line, column, err := parseSourcePos(args[0])
		if err != nil {
			return err
		}
		if source, err = filepath.Abs(source); err != nil {
			return err
		}
		pdf, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		resp, err := c.ForwardSync(cmd.Context(), viewer.SyncRequest{
			Source: source,
			Line:   line,
			Column: column,
			PDF:    pdf,
		})
		if err != nil {
			return explain(err)
		}
		fmt.Printf("%s  page %d (%.1f, %.1f)\n", resp.Viewer.Tag, resp.Position.Page+1, resp.Position.X, resp.Position.Y)
		return nil
	},
}

// parseSourcePos splits FILE:LINE[:COLUMN]. Paths may contain colons, so
// fields are taken from the right.
func parseSourcePos(arg string) (file string, line, column int, err error) {
	column = 1
	parts := strings.Split(arg, ":")
	if len(parts) < 2 {
		return "", 0, 0, fmt.Errorf("expected SOURCE:LINE[:COLUMN], got %q", arg)
	}

	nums := parts[1:]
	if len(parts) > 2 {
		if c, cerr := strconv.Atoi(parts[len(parts)-1]); cerr == nil {
			if l, lerr := strconv.Atoi(parts[len(parts)-2]); lerr == nil {
				file = strings.Join(parts[:len(parts)-2], ":")
				line, column = l, c
				nums = nil
			}
		}
	}
	if nums != nil {
		file = strings.Join(parts[:len(parts)-1], ":")
		line, err = strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			return "", 0, 0, fmt.Errorf("invalid line in %q", arg)
		}
	}
	if file == "" || line < 1 || column < 1 {
		return "", 0, 0, fmt.Errorf("invalid source position %q", arg)
	}
	return file, line, column, nil
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
