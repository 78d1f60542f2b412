// Command shuffle runs the Shuffle Empire progression engine.
package main

import (
	"os"

	"github.com/shuffle-empire/shuffle/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
