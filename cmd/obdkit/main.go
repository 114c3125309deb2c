// Command obdkit is a diagnostic client for VAG K-line and OBD-II/CAN
// vehicle interfaces.
package main

import (
	"context"
	"os"

	"github.com/vwdiag/obdkit/cmd/obdkit/cmd"
)

func main() {
	os.Exit(cmd.Execute(context.Background()))
}
