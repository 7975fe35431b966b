package main

import (
	"os"

	"github.com/pendergraft/cleanfi/internal/cli"
)

// Version is set at build time
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
