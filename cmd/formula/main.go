// formula is a command line interface for the formula engine.
package main

import (
	"os"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
