package cmd

import (
	"log/slog"
	"net/http"

	"github.com/iverton053/ivertonai.com-sub010/pkg/actions/httprequest"
	logaction "github.com/iverton053/ivertonai.com-sub010/pkg/actions/log"
	"github.com/iverton053/ivertonai.com-sub010/pkg/actions/simulated"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/registry"
	"github.com/jonboulle/clockwork"
)

func registerNativeActions(reg *registry.Registry, logger *slog.Logger) {
	reg.RegisterAction(models.ActionTypeWebhook, httprequest.NewAction(&http.Client{}, logger))
	reg.RegisterAction(models.ActionTypeLog, logaction.NewAction(logger))
}

func registerSimulatedActions(reg *registry.Registry, logger *slog.Logger) {
	clock := clockwork.NewRealClock()

	for _, actionType := range simulated.Types() {
		reg.RegisterAction(actionType, simulated.NewAction(actionType, clock, logger))
	}
}

// NewRegistry returns the reference action invoker: real webhook and log
// handlers, simulated handlers for the SaaS services.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeActions(reg, logger)
	registerSimulatedActions(reg, logger)

	return reg
}
