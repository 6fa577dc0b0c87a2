// Command todoctl is the operator CLI: it applies database migrations and
// replays SMS through the command pipeline without a provider.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
