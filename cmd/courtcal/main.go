package main

import (
	"os"

	"github.com/ironsheep/courtcal/cmd/courtcal/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
