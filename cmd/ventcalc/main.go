// Command ventcalc assesses a site case file offline.
//
// Usage:
//
//	ventcalc assess site.yaml
//	ventcalc export site.toml -o snapshot.csv
//
// The exit status is 0 when venting capacity covers inflow, 2 when it does
// not or cannot be determined, and 1 on any other error.
package main

import (
	"fmt"
	"os"
)

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ventcalc:", err)
	}
	os.Exit(exitCode(err))
}
