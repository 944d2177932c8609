package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "iverton",
		Usage:                 "Design, validate and run marketing automation workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			APICommand(),
			SchedulerCommand(),
			ValidateCommand(),
			ExportCommand(),
			ImportCommand(),
			RunCommand(),
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
