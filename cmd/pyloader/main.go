// Command pyloader lists and checks the tests of a Python project without
// running any Python.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(nil).rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
