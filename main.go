// Command ndc-embedded runs the connector's CLI (C10): initialize, update,
// upgrade and serve.
package main

import (
	"fmt"
	"os"

	"github.com/hasura/ndc-embedded/cmd"
)

func main() {
	if err := cmd.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
