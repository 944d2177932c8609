package main

import (
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/scheduler"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("LOG_LEVEL"),
	}
}

// runtimeFlags are shared by the long running commands.
func runtimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL: a directory, file://DIR or postgres://...",
			Value:   "./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Notification transport (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the resume queue; empty keeps it in process",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "How often the scheduler looks for due delays and schedules",
			Value:   scheduler.DefaultPollInterval,
			Sources: cli.EnvVars("POLL_INTERVAL"),
		},
		&cli.IntFlag{
			Name:  "max-step-executions",
			Usage: "Steps one run may execute before it fails",
			Value: 1000,
		},
		logLevelFlag(),
	}
}

func withRuntimeFlags(flags ...cli.Flag) []cli.Flag {
	return append(runtimeFlags(), flags...)
}

func pollInterval(command *cli.Command) time.Duration {
	return command.Duration("poll-interval")
}
