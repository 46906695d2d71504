package main

import (
	"os"

	"github.com/spigell/reply-tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
