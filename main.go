// The main package for the quizchain executable.
package main

import (
	"github.com/JakeFAU/quizchain/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
