// vibeshell runs shell commands for an agent inside a real terminal.
package main

import (
	"fmt"
	"os"

	"github.com/lazyvibe/vibeshell/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if code, ok := cmd.IsExitError(err); ok {
			os.Exit(code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
