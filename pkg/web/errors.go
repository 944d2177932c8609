package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/iverton053/ivertonai.com-sub010/pkg/services"
	"github.com/iverton053/ivertonai.com-sub010/pkg/validation"
	"github.com/moogar0880/problems"
)

// validationProblem is a 422 problem carrying the failing validation result.
type validationProblem struct {
	*problems.Problem

	Validation *validation.Result `json:"validation"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service layer errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsFailedValidation(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("workflow_invalid").
			WithDetail(err.Error())

		result, _ := validation.AsFailed(err)

		return c.Status(fiber.StatusUnprocessableEntity).JSON(validationProblem{Problem: problem, Validation: result})

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsNotFoundError(err):
		return notFound(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}
