package main

import (
	"os"

	"github.com/telhawk-systems/telhawk-cdc/stager/cmd/cdcctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
