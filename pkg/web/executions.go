package web

import "github.com/gofiber/fiber/v3"

// RunWorkflow starts a run and answers once it is sealed or suspended.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var req RunRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	trace, err := h.executionService.Run(c.Context(), c.Params("id"), req.TriggerData)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(trace)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	traces, err := h.executionService.ListByWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  traces,
		"total_count": len(traces),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	trace, err := h.executionService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(trace)
}

// CancelExecution seals a suspended run right away. A run executing in this
// process is only signalled, so the answer is 202.
func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")

	result, err := h.executionService.Cancel(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if result.Pending {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"execution_id": result.ExecutionID,
			"status":       "cancelling",
		})
	}

	return c.JSON(result.Trace)
}

func (h *APIHandlers) GetAnalytics(c fiber.Ctx) error {
	report, err := h.executionService.Analytics(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}
