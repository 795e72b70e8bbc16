package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanite/caseflow/pkg/authz"
	"github.com/urbanite/caseflow/pkg/cases"
	"github.com/urbanite/caseflow/pkg/definitions"
	"github.com/urbanite/caseflow/pkg/inventory"
	"github.com/urbanite/caseflow/pkg/locks"
	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence/memory"
	"github.com/urbanite/caseflow/pkg/validation"
	"github.com/urbanite/caseflow/pkg/web"
)

type testEnv struct {
	app  *fiber.App
	defs *definitions.Service
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()
	defs := definitions.NewService(store, logger)

	caseService := cases.NewService(
		store,
		defs,
		validation.NewValidator(inventory.NewMemoryStore()),
		authz.AllowAll{},
		locks.NewMemoryLocker(),
		nil,
		logger,
	)

	handlers := web.NewAPIHandlers(caseService, defs, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return &testEnv{app: app, defs: defs}
}

func fptr(f float64) *float64 { return &f }

func seedFlow(t *testing.T, env *testEnv) *models.Flow {
	t.Helper()

	flow, err := env.defs.CreateFlow(context.Background(), &models.Flow{
		Title:   "Noise complaint",
		Initial: true,
		ResolutionStates: []*models.ResolutionState{
			{ID: "rs-done", Title: "done", Default: true},
		},
		Steps: []*models.Step{
			{
				ID: "step-report", Title: "Report", Kind: models.StepKindForm,
				Fields: []*models.Field{
					{
						ID: "f-age", Title: "user_age", Type: models.FieldTypeInteger,
						Requirements: models.Requirements{Minimum: fptr(1), Maximum: fptr(150)},
					},
				},
				Triggers: []*models.Trigger{
					{
						ID: "tr-finish", Title: "minors resolve immediately",
						ActionType: models.ActionTypeFinishFlow, ActionValues: []string{"rs-done"},
						Conditions: []*models.TriggerCondition{
							{FieldID: "f-age", Type: models.ConditionEquals, Values: []string{"10"}},
						},
					},
				},
			},
			{
				ID: "step-follow", Title: "Follow up", Kind: models.StepKindForm,
				Fields: []*models.Field{
					{ID: "f-notes", Title: "notes", Type: models.FieldTypeText},
				},
			},
		},
	}, "admin")
	require.NoError(t, err)

	return flow
}

func doJSON(t *testing.T, env *testEnv, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-Group-Ids", "agents")

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return body
}

func createCase(t *testing.T, env *testEnv, flowID, age string) string {
	t.Helper()

	resp := doJSON(t, env, http.MethodPost, "/cases/", web.CreateCaseRequest{
		FlowID: flowID,
		StepID: "step-report",
		Fields: []web.FieldValue{{FieldID: "f-age", Value: age}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	kase := body["case"].(map[string]any)

	return kase["id"].(string)
}

func TestCreateCase_Success(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)

	resp := doJSON(t, env, http.MethodPost, "/cases/", web.CreateCaseRequest{
		FlowID: flow.ID,
		StepID: "step-report",
		Fields: []web.FieldValue{{FieldID: "f-age", Value: "25"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	kase := body["case"].(map[string]any)
	assert.Equal(t, "active", kase["status"])
}

func TestCreateCase_TriggerFinishesCase(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)

	resp := doJSON(t, env, http.MethodPost, "/cases/", web.CreateCaseRequest{
		FlowID: flow.ID,
		StepID: "step-report",
		Fields: []web.FieldValue{{FieldID: "f-age", Value: "10"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	kase := body["case"].(map[string]any)
	assert.Equal(t, "finished", kase["status"])
	assert.Equal(t, "rs-done", kase["resolution_state_id"])
}

func TestCreateCase_ValidationFailureReturnsFieldMap(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)

	resp := doJSON(t, env, http.MethodPost, "/cases/", web.CreateCaseRequest{
		FlowID: flow.ID,
		StepID: "step-report",
		Fields: []web.FieldValue{{FieldID: "f-age", Value: "not a number"}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	fieldErrors := body["errors"].(map[string]any)
	assert.Contains(t, fieldErrors, "user_age")
}

func TestCreateCase_MissingUserHeader(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)

	payload, err := json.Marshal(web.CreateCaseRequest{FlowID: flow.ID, StepID: "step-report"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/cases/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitStep_FinishedCaseReturns405(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)
	caseID := createCase(t, env, flow.ID, "10")

	resp := doJSON(t, env, http.MethodPut, "/cases/"+caseID, web.SubmitStepRequest{
		StepID: "step-follow",
		Fields: []web.FieldValue{{FieldID: "f-notes", Value: "late"}},
	})
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "case_is_finished", body["type"])
}

func TestSubmitStep_AppendsCaseStep(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)
	caseID := createCase(t, env, flow.ID, "25")

	resp := doJSON(t, env, http.MethodPut, "/cases/"+caseID, web.SubmitStepRequest{
		StepID: "step-follow",
		Fields: []web.FieldValue{{FieldID: "f-notes", Value: "visited the site"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	kase := body["case"].(map[string]any)
	steps := kase["case_steps"].([]any)
	assert.Len(t, steps, 2)
}

func TestFinishCase_AlreadyFinishedReturnsNotice(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)
	caseID := createCase(t, env, flow.ID, "10")

	resp := doJSON(t, env, http.MethodPut, "/cases/"+caseID+"/finish", web.FinishCaseRequest{
		ResolutionStateID: "rs-other",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "case is already finished", body["notice"])

	kase := body["case"].(map[string]any)
	assert.Equal(t, "rs-done", kase["resolution_state_id"])
}

func TestTransferCase_ReturnsChildCase(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)

	target, err := env.defs.CreateFlow(context.Background(), &models.Flow{
		Title:   "Escalation",
		Initial: true,
		Steps: []*models.Step{
			{ID: "step-esc", Title: "Escalate", Kind: models.StepKindForm, Fields: []*models.Field{
				{ID: "f-why", Title: "reason", Type: models.FieldTypeText},
			}},
		},
	}, "admin")
	require.NoError(t, err)

	caseID := createCase(t, env, flow.ID, "25")

	resp := doJSON(t, env, http.MethodPut, "/cases/"+caseID+"/transfer", web.TransferCaseRequest{
		FlowID: target.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	child := body["case"].(map[string]any)
	assert.Equal(t, caseID, child["original_case_id"])
	assert.Equal(t, "active", child["status"])
}

func TestDeleteAndRestoreCase(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)
	caseID := createCase(t, env, flow.ID, "25")

	resp := doJSON(t, env, http.MethodDelete, "/cases/"+caseID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	kase := body["case"].(map[string]any)
	assert.Equal(t, "inactive", kase["status"])

	resp = doJSON(t, env, http.MethodPut, "/cases/"+caseID+"/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body = decodeBody(t, resp)
	kase = body["case"].(map[string]any)
	assert.Equal(t, "active", kase["status"])
}

func TestGetCase_NotFound(t *testing.T) {
	env := setupTestApp(t)
	seedFlow(t, env)

	resp := doJSON(t, env, http.MethodGet, "/cases/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetCase_IncludesAuditLog(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)
	caseID := createCase(t, env, flow.ID, "10")

	resp := doJSON(t, env, http.MethodGet, "/cases/"+caseID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	entries := body["audit_log"].([]any)
	assert.Len(t, entries, 2)
}

func TestListCases_FiltersByStatus(t *testing.T) {
	env := setupTestApp(t)
	flow := seedFlow(t, env)

	createCase(t, env, flow.ID, "25")
	createCase(t, env, flow.ID, "10")

	resp := doJSON(t, env, http.MethodGet, "/cases/?status=finished", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	listed := body["cases"].([]any)
	require.Len(t, listed, 1)

	kase := listed[0].(map[string]any)
	assert.Equal(t, "finished", kase["status"])
}

func TestCreateFlow_ImportsValidatedDocument(t *testing.T) {
	env := setupTestApp(t)

	document := []byte(`{
		"title": "Tree pruning",
		"initial": true,
		"steps": [
			{"title": "Request", "fields": [{"title": "address", "field_type": "text"}]}
		]
	}`)

	req := httptest.NewRequest(http.MethodPost, "/flows/", bytes.NewReader(document))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "admin")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var flow models.Flow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&flow))
	assert.Equal(t, "Tree pruning", flow.Title)
	assert.NotEmpty(t, flow.ID)
}

func TestCreateFlow_RejectsInvalidDocument(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/flows/", bytes.NewReader([]byte(`{"steps": []}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "admin")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
