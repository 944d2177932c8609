package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/iverton053/ivertonai.com-sub010/pkg/log"
	"github.com/iverton053/ivertonai.com-sub010/pkg/registry"
	"github.com/iverton053/ivertonai.com-sub010/pkg/services"
	"github.com/iverton053/ivertonai.com-sub010/pkg/web"
	cli "github.com/urfave/cli/v3"
)

type API struct {
	logger     *slog.Logger
	workflows  *services.Workflow
	executions *services.Execution
	registry   *registry.Registry
	validate   *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	workflows *services.Workflow,
	executions *services.Execution,
	registry *registry.Registry,
) *API {
	return &API{
		logger:     logger,
		workflows:  workflows,
		executions: executions,
		registry:   registry,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workflows, a.executions, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Iverton Workflows API")
	})

	handlers.Mount(app)

	return app
}

func APICommand() *cli.Command {
	return &cli.Command{
		Name:    "api",
		Aliases: []string{"serve"},
		Usage:   "Start the workflow API",
		Flags: withRuntimeFlags(
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.BoolFlag{
				Name:  "embedded-scheduler",
				Usage: "Run the scheduler in the API process",
				Value: true,
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Iverton API")

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
				}
			}()

			if err := rt.watchNotifications(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to notifications: %w", err)
			}

			if command.Bool("embedded-scheduler") {
				s := rt.newScheduler(command)
				if err := s.Start(ctx); err != nil {
					return err
				}

				defer s.Stop()
			}

			api := NewAPI(logger, rt.workflows, rt.executions, rt.registry)

			err = api.App().Listen(":" + strconv.Itoa(command.Int("port")))
			if err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)
			}

			return err
		},
	}
}
