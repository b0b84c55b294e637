package main

import (
	"os"

	"github.com/mfarias/salon-events/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
