package main

import (
	"os"

	"github.com/zombar/reviewxai/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
