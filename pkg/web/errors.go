package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/urbanite/caseflow/pkg/cases"
	"github.com/urbanite/caseflow/pkg/definitions"
	"github.com/urbanite/caseflow/pkg/validation"
)

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

// fieldErrorsProblem carries the collected per-field validation failures.
type fieldErrorsProblem struct {
	*problems.Problem

	Errors map[string][]string `json:"errors"`
}

// handleServiceError maps engine errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var failures validation.FieldErrors

	switch {
	case errors.As(err, &failures):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail("submitted values failed validation")

		return c.Status(fiber.StatusBadRequest).JSON(fieldErrorsProblem{
			Problem: problem,
			Errors:         failures,
		})

	case errors.Is(err, cases.ErrPermissionDenied):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("permission_denied").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case errors.Is(err, cases.ErrCaseFinished):
		problem := problems.NewStatusProblem(405).
			WithInstance(c.Path()).
			WithType("case_is_finished").
			WithDetail(err.Error())

		return c.Status(fiber.StatusMethodNotAllowed).JSON(problem)

	case errors.Is(err, cases.ErrStepDisabled):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("step_is_disabled").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case errors.Is(err, cases.ErrCaseNotRestorable):
		return badRequest(c, err.Error())

	case errors.Is(err, cases.ErrNotInitialFlow):
		return badRequest(c, err.Error())

	case errors.Is(err, definitions.ErrFlowInactive),
		errors.Is(err, definitions.ErrFlowHasNoSteps):
		return notFound(c, err.Error())

	case cases.IsNotFound(err):
		return notFound(c, err.Error())

	default:
		return internalError(c, err)
	}
}
