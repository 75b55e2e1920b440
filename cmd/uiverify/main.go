package main

import (
	"os"

	"github.com/wisdomia/uiverify/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
