package web

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/iverton053/ivertonai.com-sub010/pkg/graph"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

func (h *APIHandlers) CreateStep(c fiber.Ctx) error {
	var req CreateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step, err := h.workflowService.AddStep(c.Context(), c.Params("id"), req.service())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) GetStep(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	step, ok := workflow.StepByID(c.Params("stepId"))
	if !ok {
		return handleServiceError(c, &graph.UnknownStepError{StepID: c.Params("stepId")})
	}

	return c.JSON(step)
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	var req UpdateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step, err := h.workflowService.UpdateStep(c.Context(), c.Params("id"), c.Params("stepId"), req.service())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(step)
}

func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	if err := h.workflowService.RemoveStep(c.Context(), c.Params("id"), c.Params("stepId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) Connect(c fiber.Ctx) error {
	return h.connection(c, h.workflowService.Connect)
}

func (h *APIHandlers) Disconnect(c fiber.Ctx) error {
	return h.connection(c, h.workflowService.Disconnect)
}

type edgeOp func(ctx context.Context, workflowID, fromID, toID string) (*models.Workflow, error)

func (h *APIHandlers) connection(c fiber.Ctx, op edgeOp) error {
	var req ConnectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := op(c.Context(), c.Params("id"), req.From, req.To)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}
