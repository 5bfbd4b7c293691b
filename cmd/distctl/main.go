package main

import (
	"os"

	"bbdist/cmd/distctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
