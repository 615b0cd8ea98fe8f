// The main package for the crawlbench executable.
package main

import (
	"github.com/mfields/crawlbench/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
