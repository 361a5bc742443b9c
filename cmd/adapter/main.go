package main

import (
	"os"

	"github.com/psantana5/adapter-skeleton/cmd/adapter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
