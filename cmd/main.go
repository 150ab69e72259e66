package main

import (
	"os"

	"github.com/jasa1aw/eduBack/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
