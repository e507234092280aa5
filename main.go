// The main package for the profilegrab executable.
package main

import (
	"github.com/JakeFAU/profilegrab/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
