package main

import (
	"os"

	"github.com/spigell/ses-matcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
