package main

import (
	"os"

	"github.com/devworth/devworth/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
