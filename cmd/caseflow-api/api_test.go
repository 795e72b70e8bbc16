package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanite/caseflow/pkg/channels/gochannel"
	"github.com/urbanite/caseflow/pkg/eventbus"
	"github.com/urbanite/caseflow/pkg/locks"
	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence/memory"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Logf("Failed to close event bus: %v", err)
		}
	})

	api := NewAPI(
		slog.Default(),
		memory.NewPersistence(),
		bus,
		locks.NewMemoryLocker(),
	)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Caseflow API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/cases", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_Integration_CaseLifecycle(t *testing.T) {
	app := setupTestApp(t)

	// Import a flow, open a case against it and finish the case, all
	// through the HTTP surface.
	document := []byte(`{
		"title": "Broken streetlight",
		"initial": true,
		"resolution_states": [{"id": "rs-fixed", "title": "fixed", "default": true}],
		"steps": [
			{"id": "step-report", "title": "Report", "fields": [
				{"id": "f-location", "title": "location", "field_type": "text", "requirements": {"presence": true}}
			]}
		]
	}`)

	req := httptest.NewRequest(http.MethodPost, "/flows/", bytes.NewReader(document))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "admin")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var flow models.Flow

	err = json.NewDecoder(resp.Body).Decode(&flow)
	require.NoError(t, err)
	require.NotEmpty(t, flow.ID)
	require.Len(t, flow.Steps, 1)

	createPayload, err := json.Marshal(map[string]any{
		"flow_id": flow.ID,
		"step_id": flow.Steps[0].ID,
		"fields":  []map[string]any{{"field_id": "f-location", "value": "5th and Main"}},
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/cases/", bytes.NewReader(createPayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "citizen-1")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Case models.Case `json:"case"`
	}

	err = json.NewDecoder(resp.Body).Decode(&created)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusActive, created.Case.Status)
	require.NotEmpty(t, created.Case.ID)

	finishPayload := []byte(`{"resolution_state_id": "rs-fixed"}`)

	req = httptest.NewRequest(http.MethodPut, "/cases/"+created.Case.ID+"/finish", bytes.NewReader(finishPayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "agent-1")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var finished struct {
		Case models.Case `json:"case"`
	}

	err = json.NewDecoder(resp.Body).Decode(&finished)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusFinished, finished.Case.Status)
	assert.Equal(t, "rs-fixed", finished.Case.ResolutionStateID)
}
