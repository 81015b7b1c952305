// The main package for the harvester executable.
package main

import (
	"github.com/JakeFAU/journal-harvester/cmd"
)

func main() {
	cmd.Execute()
}
