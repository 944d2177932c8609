package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/iverton053/ivertonai.com-sub010/pkg/cmd"
	"github.com/iverton053/ivertonai.com-sub010/pkg/loader"
	"github.com/iverton053/ivertonai.com-sub010/pkg/log"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/n8n"
	"github.com/iverton053/ivertonai.com-sub010/pkg/validation"
	"github.com/iverton053/ivertonai.com-sub010/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var (
	ErrFileRequired    = errors.New("a workflow file is required")
	ErrInvalidWorkflow = errors.New("workflow is invalid")
)

func fileArgument(command *cli.Command) (string, error) {
	path := command.Args().First()
	if path == "" {
		return "", ErrFileRequired
	}

	return path, nil
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write to this file instead of stdout",
	}
}

func writeOutput(command *cli.Command, data []byte) error {
	path := command.String("output")
	if path == "" {
		_, err := command.Root().Writer.Write(append(data, '\n'))
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a workflow file and print the validation result",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{logLevelFlag()},
		Action: func(_ context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			path, err := fileArgument(command)
			if err != nil {
				return err
			}

			wf, err := loader.Load(path)
			if err != nil {
				return err
			}

			result, err := validation.New().Validate(wf)
			if err != nil {
				return err
			}

			if err := printJSON(command.Root().Writer, result); err != nil {
				return err
			}

			if !result.OK {
				return fmt.Errorf("%w: %d errors", ErrInvalidWorkflow, len(result.Errors))
			}

			return nil
		},
	}
}

func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Convert a workflow file to an n8n document",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{outputFlag(), logLevelFlag()},
		Action: func(_ context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			path, err := fileArgument(command)
			if err != nil {
				return err
			}

			wf, err := loader.Load(path)
			if err != nil {
				return err
			}

			data, err := n8n.Marshal(wf)
			if err != nil {
				return err
			}

			return writeOutput(command, data)
		},
	}
}

func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Convert an n8n document to a native workflow file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (json, yaml)",
				Value: "json",
			},
			outputFlag(),
			logLevelFlag(),
		},
		Action: func(_ context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			path, err := fileArgument(command)
			if err != nil {
				return err
			}

			format, err := loader.ParseFormat(command.String("format"))
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			wf, err := n8n.Import(data)
			if err != nil {
				return err
			}

			out, err := loader.Marshal(wf, format)
			if err != nil {
				return err
			}

			return writeOutput(command, out)
		},
	}
}

// RunCommand executes a workflow file locally with the reference invoker.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a workflow file locally and print its execution trace",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "trigger-data",
				Usage: "Trigger payload as a JSON object",
				Value: "{}",
			},
			&cli.BoolFlag{
				Name:  "skip-delays",
				Usage: "Resume delay branches right away instead of leaving the run suspended",
			},
			logLevelFlag(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("run")

			path, err := fileArgument(command)
			if err != nil {
				return err
			}

			wf, err := loader.Load(path)
			if err != nil {
				return err
			}

			var triggerData map[string]any
			if err := json.Unmarshal([]byte(command.String("trigger-data")), &triggerData); err != nil {
				return fmt.Errorf("invalid trigger data: %w", err)
			}

			executor := workflow.NewExecutor(cmd.NewRegistry(logger), workflow.WithLogger(logger))

			trace, err := executor.Run(ctx, wf, triggerData)
			if err != nil {
				return err
			}

			if command.Bool("skip-delays") {
				trace, err = drainSuspensions(ctx, executor, wf, trace)
				if err != nil {
					return err
				}
			}

			return printJSON(command.Root().Writer, trace)
		},
	}
}

// drainSuspensions resumes pending delay branches in due order until none are left.
func drainSuspensions(ctx context.Context, executor *workflow.Executor, wf *models.Workflow, trace *models.ExecutionTrace) (*models.ExecutionTrace, error) {
	for !trace.Status.Sealed() {
		pending := trace.PendingSuspensions()
		if len(pending) == 0 {
			return trace, nil
		}

		next := pending[0]
		for _, s := range pending[1:] {
			if s.DueAt.Before(next.DueAt) {
				next = s
			}
		}

		resumed, err := executor.Resume(ctx, wf, trace, next.ID)
		if err != nil {
			return nil, err
		}

		trace = resumed
	}

	return trace, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
