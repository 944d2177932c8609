package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/iverton053/ivertonai.com-sub010/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func SchedulerCommand() *cli.Command {
	return &cli.Command{
		Name:  "scheduler",
		Usage: "Resume due delay branches and fire schedule triggers",
		Flags: runtimeFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("scheduler")

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := rt.newScheduler(command)
			if err := s.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			logger.Info("Shutting down scheduler")
			s.Stop()

			return nil
		},
	}
}

