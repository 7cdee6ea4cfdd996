// Command pipeline runs the candidate pipeline orchestration service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hirewire/pipeline-go/interfaces/cli"
)

func main() {
	app := cli.New()
	if err := app.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
