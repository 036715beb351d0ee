// Command packetcore is the entry point for the packetcore capture
// agent and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/kaelstrom/packetcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
