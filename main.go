// The main package for the stlcrawler executable.
package main

import (
	"github.com/JakeFAU/stl-revenue-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
