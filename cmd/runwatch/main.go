// The main package for the runwatch executable.
package main

import (
	"github.com/JakeFAU/runwatch/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
