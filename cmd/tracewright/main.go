package main

import (
	"os"

	"github.com/tracewright/tracewright/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
