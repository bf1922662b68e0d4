package main

import (
	"os"

	"github.com/quantfold/backsim/cmd/backsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
