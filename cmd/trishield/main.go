package main

import (
	"os"

	"github.com/ppiankov/trishield/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
