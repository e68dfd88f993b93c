package main

import (
	"os"

	"github.com/linesmerrill/lapor-sampah-api/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
