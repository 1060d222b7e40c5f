// Package main is the entry point for snapcron.
package main

import (
	"os"

	"github.com/fgeck/snapcron/internal/services/shell"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(exitStatus(err))
	}
}

// exitStatus returns the exit code of the failed external command behind err,
// or 1.
func exitStatus(err error) int {
	if code, ok := shell.ExitCode(err); ok && code > 0 {
		return code
	}
	return 1
}
