package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pdfview/pdfview/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pdfview configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to pick an editor and refresh settings, and writes a .pdfview.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
