package main

import (
	"os"

	"github.com/pdfview/pdfview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
