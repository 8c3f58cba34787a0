package main

import (
	"os"

	"github.com/cleared-dev/posprep/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
