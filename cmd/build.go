package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdfview/pdfview/internal/viewer"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Tell the daemon a build is running",
	Long: `Build hooks let a build tool pause auto refresh while it rewrites a PDF
and resume it afterwards, so viewers refresh once per build.`,
}

var buildStartCmd = &cobra.Command{
	Use:   "start FILE",
	Short: "Pause auto refresh for viewers of FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuildHook(cmd.Context(), args[0], true)
	},
}

var buildFinishCmd = &cobra.Command{
	Use:   "finish FILE",
	Short: "Resume auto refresh for viewers of FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuildHook(cmd.Context(), args[0], false)
	},
}

func runBuildHook(ctx context.Context, file string, start bool) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	var affected []viewer.State
	if start {
		affected, err = c.BuildStart(ctx, abs)
	} else {
		affected, err = c.BuildFinish(ctx, abs)
	}
	if err != nil {
		return explain(err)
	}
	if verbose {
		for _, st := range affected {
			fmt.Printf("%s  %s\n", st.Tag, st.Path)
		}
	}
	return nil
}

func init() {
	buildCmd.AddCommand(buildStartCmd, buildFinishCmd)
	rootCmd.AddCommand(buildCmd)
}
