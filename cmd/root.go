package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfview",
	Short: "Live-refreshing PDF viewer with synctex source navigation",
	Long: `pdfview shows PDF documents in the browser and refreshes them when
the file on disk changes and has finished being written. It jumps between
TeX sources and the rendered PDF in both directions using synctex, and
exposes its viewers to editors, build tools and AI agents.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".pdfview.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
