// Command taskrt exercises the task runtime from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "taskrt",
		Usage: "Run priority and deadline scheduling demos against the task runtime",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			DeadlinesCommand(),
			ThroughputCommand(),
			ConfigCommand(),
		},
	}
}
