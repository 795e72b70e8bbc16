package web

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/urbanite/caseflow/pkg/cases"
	"github.com/urbanite/caseflow/pkg/definitions"
	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence"
)

type APIHandlers struct {
	caseService *cases.Service
	definitions *definitions.Service
	validator   *validator.Validate
}

func NewAPIHandlers(caseService *cases.Service, defs *definitions.Service, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		caseService: caseService,
		definitions: defs,
		validator:   validate,
	}
}

// RegisterRoutes mounts the case and flow endpoints on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	c := app.Group("/cases")
	c.Post("/", h.CreateCase)
	c.Get("/", h.ListCases)
	c.Get("/:id", h.GetCase)
	c.Put("/:id", h.SubmitStep)
	c.Delete("/:id", h.DeleteCase)
	c.Put("/:id/finish", h.FinishCase)
	c.Put("/:id/transfer", h.TransferCase)
	c.Put("/:id/restore", h.RestoreCase)
	c.Put("/:id/case_steps/:caseStepId", h.UpdateCaseStep)

	f := app.Group("/flows")
	f.Post("/", h.CreateFlow)
	f.Get("/:id", h.GetFlow)
}

// actorFromHeaders builds the acting identity from the gateway-supplied
// headers. Authentication itself happens upstream.
func actorFromHeaders(c fiber.Ctx) (models.Actor, bool) {
	userID := c.Get("X-User-Id")
	if userID == "" {
		return models.Actor{}, false
	}

	actor := models.Actor{UserID: userID}

	if groups := c.Get("X-Group-Ids"); groups != "" {
		for _, groupID := range strings.Split(groups, ",") {
			if trimmed := strings.TrimSpace(groupID); trimmed != "" {
				actor.GroupIDs = append(actor.GroupIDs, trimmed)
			}
		}
	}

	return actor, true
}

func (h *APIHandlers) CreateCase(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	var req CreateCaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.caseService.Create(c.Context(), req.FlowID, req.StepID, submittedValues(req.Fields), actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(caseResult(result.Case, result.Child, result.Notice))
}

func (h *APIHandlers) ListCases(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	opts, err := parseListOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	listed, err := h.caseService.List(c.Context(), opts, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"cases": listed,
		"pagination": fiber.Map{
			"page":     opts.Page,
			"per_page": opts.PerPage,
		},
	})
}

func parseListOptions(c fiber.Ctx) (persistence.ListCasesOptions, error) {
	opts := persistence.ListCasesOptions{
		InitialFlowID:      c.Query("initial_flow_id"),
		StepID:             c.Query("step_id"),
		ResponsibleUserID:  c.Query("responsible_user_id"),
		ResponsibleGroupID: c.Query("responsible_group_id"),
		CreatedByID:        c.Query("created_by_id"),
		UpdatedByID:        c.Query("updated_by_id"),
	}

	if statuses := c.Query("status"); statuses != "" {
		for _, status := range strings.Split(statuses, ",") {
			opts.Statuses = append(opts.Statuses, models.CaseStatus(strings.TrimSpace(status)))
		}
	}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return opts, err
		}

		opts.Page = page
	}

	if perPageStr := c.Query("per_page"); perPageStr != "" {
		perPage, err := strconv.Atoi(perPageStr)
		if err != nil {
			return opts, err
		}

		opts.PerPage = perPage
	}

	return opts, nil
}

func (h *APIHandlers) GetCase(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	kase, entries, err := h.caseService.Get(c.Context(), c.Params("id"), actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"case":      kase,
		"audit_log": entries,
	})
}

func (h *APIHandlers) SubmitStep(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	var req SubmitStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.caseService.SubmitStep(c.Context(), c.Params("id"), req.StepID, req.StepVersion, submittedValues(req.Fields), actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(caseResult(result.Case, result.Child, result.Notice))
}

func (h *APIHandlers) FinishCase(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	var req FinishCaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	kase, notice, err := h.caseService.Finish(c.Context(), c.Params("id"), req.ResolutionStateID, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(caseResult(kase, nil, notice))
}

func (h *APIHandlers) TransferCase(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	var req TransferCaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	child, err := h.caseService.Transfer(c.Context(), c.Params("id"), req.FlowID, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"case": child})
}

func (h *APIHandlers) RestoreCase(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	kase, err := h.caseService.Restore(c.Context(), c.Params("id"), actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"case": kase})
}

func (h *APIHandlers) UpdateCaseStep(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	var req UpdateCaseStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	kase, err := h.caseService.UpdateCaseStep(c.Context(), c.Params("id"), c.Params("caseStepId"),
		cases.ResponsibleUpdate{UserID: req.ResponsibleUserID, GroupID: req.ResponsibleGroupID}, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"case": kase})
}

func (h *APIHandlers) DeleteCase(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	kase, err := h.caseService.SoftDelete(c.Context(), c.Params("id"), actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"case": kase})
}

// CreateFlow imports a JSON flow document, validated against the flow
// schema before storage.
func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	actor, ok := actorFromHeaders(c)
	if !ok {
		return badRequest(c, "X-User-Id header is required")
	}

	flow, err := h.definitions.ImportFlow(c.Context(), c.Body(), actor.UserID)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.definitions.GetFlow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func caseResult(kase *models.Case, child *models.Case, notice string) fiber.Map {
	result := fiber.Map{"case": kase}

	if child != nil {
		result["child_case"] = child
	}

	if notice != "" {
		result["notice"] = notice
	}

	return result
}
