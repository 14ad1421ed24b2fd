package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdfview/pdfview/internal/client"
	"github.com/pdfview/pdfview/internal/progress"
	"github.com/pdfview/pdfview/internal/viewer"
)

const readyPoll = 200 * time.Millisecond

var (
	openWait    bool
	openTimeout time.Duration
)

var openCmd = &cobra.Command{
	Use:   "open FILE[#DEST]...",
	Short: "Open PDFs in the running daemon",
	Long: `Opens each FILE in a viewer, or brings forward the viewer already showing
it. An optional #DEST suffix scrolls to a named destination or fragment
such as #page=3. With --wait the command returns once every viewer has
loaded its document.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var opened []viewer.State
		for _, arg := range args {
			path, hash := splitHash(arg)
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			st, err := c.Open(cmd.Context(), abs, hash)
			if err != nil {
				return explain(err)
			}
			fmt.Printf("%s  %s\n", st.Tag, st.Path)
			opened = append(opened, st)
		}

		if !openWait {
			return nil
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), openTimeout)
		defer cancel()
		return explain(waitReady(ctx, c, opened, progress.NewReporter()))
	},
}

// waitReady polls the daemon until every viewer in want is ready.
func waitReady(ctx context.Context, c *client.Client, want []viewer.State, rep progress.Reporter) error {
	rep.Start(len(want))
	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()

	for {
		list, err := c.List(ctx)
		if err != nil {
			return err
		}
		ready := make(map[string]bool, len(list))
		for _, st := range list {
			ready[st.Tag] = st.Ready
		}

		done, last := 0, ""
		for _, st := range want {
			if ready[st.Tag] {
				done++
				last = filepath.Base(st.Path)
			}
		}
		rep.Update(done, last)
		if done == len(want) {
			rep.Finish()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for viewers: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List open viewers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		list, err := c.List(cmd.Context())
		if err != nil {
			return explain(err)
		}
		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		if len(list) == 0 {
			fmt.Println("No documents are open.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TAG\tREFRESH\tREADY\tPATH")
		for _, st := range list {
			refresh := "auto"
			switch {
			case st.BuildPaused:
				refresh = "build"
			case !st.AutoRefresh:
				refresh = "off"
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", st.Tag, refresh, st.Ready, st.Path)
		}
		return tw.Flush()
	},
}

var closeCmd = &cobra.Command{
	Use:   "close TAG",
	Short: "Close a viewer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return explain(c.Close(cmd.Context(), args[0]))
	},
}

var reloadAllCmd = &cobra.Command{
	Use:   "reload-all",
	Short: "Fully reload every open viewer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return explain(c.ReloadAll(cmd.Context()))
	},
}

// splitHash separates a trailing #fragment from a path.
func splitHash(arg string) (path, hash string) {
	if i := strings.LastIndexByte(arg, '#'); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

func init() {
	openCmd.Flags().BoolVar(&openWait, "wait", false, "wait until the viewers have loaded")
	openCmd.Flags().DurationVar(&openTimeout, "timeout", 30*time.Second, "how long --wait waits")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print viewers as JSON")
	rootCmd.AddCommand(openCmd, listCmd, closeCmd, reloadAllCmd)
}
