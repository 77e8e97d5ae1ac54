package main

import (
	"os"

	"github.com/apresai/sheetvoice/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
