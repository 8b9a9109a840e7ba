// Command dtctl drives a datatools server: key suggestion, comparison and
// validation runs, run history and the audit log.
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
