package main

import (
	"os"

	"lift/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
