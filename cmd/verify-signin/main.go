// Command verify-signin captures the sign-in page before and after a
// placeholder submission. It takes no arguments and exits 0 unless
// UIVERIFY_POLICY_SIGNIN_FATAL is set.
package main

import (
	"os"

	"github.com/wisdomia/uiverify/internal/cli"
	"github.com/wisdomia/uiverify/internal/flows"
)

func main() {
	os.Exit(cli.Main([]string{flows.SignIn}))
}
