// Command verify-admin checks the secured admin dashboard. It takes no
// arguments; the target and credentials come from .env or UIVERIFY_* variables.
package main

import (
	"os"

	"github.com/wisdomia/uiverify/internal/cli"
	"github.com/wisdomia/uiverify/internal/flows"
)

func main() {
	os.Exit(cli.Main([]string{flows.Admin}))
}
