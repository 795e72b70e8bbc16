package definitions

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence/memory"
)

func newTestService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewService(memory.NewPersistence(), logger)
}

func sampleFlow() *models.Flow {
	return &models.Flow{
		Title:   "Streetlight repair",
		Initial: true,
		Steps: []*models.Step{
			{
				Title: "Report details",
				Kind:  models.StepKindForm,
				Fields: []*models.Field{
					{Title: "address", Type: models.FieldTypeText, Requirements: models.Requirements{Presence: true}},
					{Title: "pole_count", Type: models.FieldTypeInteger},
				},
			},
			{
				Title: "Inspection",
				Kind:  models.StepKindForm,
				Fields: []*models.Field{
					{Title: "inspection_notes", Type: models.FieldTypeText},
				},
			},
		},
	}
}

func TestCreateFlow_AssignsIDsAndSnapshotsStepsAtVersionOne(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, flow.ID)
	assert.Equal(t, models.FlowStatusActive, flow.Status)
	assert.Equal(t, 1, flow.Version)
	assert.Equal(t, "user-1", flow.CreatedBy)

	for i, step := range flow.Steps {
		assert.NotEmpty(t, step.ID)
		assert.Equal(t, flow.ID, step.FlowID)
		assert.Equal(t, i, step.Order)
		assert.Equal(t, 1, step.Version)
		assert.True(t, step.Active)

		snapshot, err := service.Snapshot(ctx, step.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, step.ID, snapshot.Step.ID)
	}
}

func TestCreateFlow_RejectsShortTitle(t *testing.T) {
	service := newTestService()

	_, err := service.CreateFlow(context.Background(), &models.Flow{Title: "ab"}, "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flow definition")
}

func TestUpdateFlow_CosmeticEditDoesNotVersion(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	title := "Streetlight repair v2"
	updated, err := service.UpdateFlow(ctx, flow.ID, FlowUpdate{Title: &title}, "user-2")
	require.NoError(t, err)

	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, "user-2", updated.UpdatedBy)
}

func TestUpdateStep_CosmeticVersusStructural(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	stepID := flow.Steps[0].ID

	title := "Report details (renamed)"
	step, err := service.UpdateStep(ctx, flow.ID, stepID, StepUpdate{Title: &title}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, step.Version, "cosmetic edit must not version")

	order := 5
	step, err = service.UpdateStep(ctx, flow.ID, stepID, StepUpdate{Order: &order}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, step.Version)

	snapshot, err := service.Snapshot(ctx, stepID, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.Step.Order)
}

func TestAddField_VersionsStepAndSnapshot(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	stepID := flow.Steps[0].ID

	field, err := service.AddField(ctx, flow.ID, stepID, &models.Field{
		Title: "photo",
		Type:  models.FieldTypeImage,
	}, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, field.ID)

	reloaded, err := service.GetFlow(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.StepByID(stepID).Version)
	assert.Equal(t, 2, reloaded.Version)

	snapshot, err := service.Snapshot(ctx, stepID, 2)
	require.NoError(t, err)
	assert.NotNil(t, snapshot.Step.FieldByID(field.ID))
}

func TestSnapshot_UnchangedAfterLiveEditAndSoftDelete(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	stepID := flow.Steps[0].ID
	fieldID := flow.Steps[0].Fields[0].ID

	bound, err := service.Snapshot(ctx, stepID, 1)
	require.NoError(t, err)
	require.True(t, bound.Step.FieldByID(fieldID).Active)
	require.Len(t, bound.Step.Fields, 2)

	require.NoError(t, service.RemoveField(ctx, flow.ID, stepID, fieldID, "user-1"))
	_, err = service.AddField(ctx, flow.ID, stepID, &models.Field{
		Title: "severity",
		Type:  models.FieldTypeSelect,
		Values: map[string]string{
			"low": "Low", "high": "High",
		},
	}, "user-1")
	require.NoError(t, err)

	require.NoError(t, service.RemoveStep(ctx, flow.ID, stepID, "user-1"))

	after, err := service.Snapshot(ctx, stepID, 1)
	require.NoError(t, err)
	assert.True(t, after.Step.Active)
	assert.True(t, after.Step.FieldByID(fieldID).Active)
	assert.Len(t, after.Step.Fields, 2)
}

func TestRemoveStep_VersionsWithActiveFalse(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	stepID := flow.Steps[1].ID
	require.NoError(t, service.RemoveStep(ctx, flow.ID, stepID, "user-1"))

	snapshot, err := service.Snapshot(ctx, stepID, 2)
	require.NoError(t, err)
	assert.False(t, snapshot.Step.Active)

	// Removing an already inactive step is a no-op.
	require.NoError(t, service.RemoveStep(ctx, flow.ID, stepID, "user-1"))

	reloaded, err := service.GetFlow(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.StepByID(stepID).Version)
}

func TestAddTrigger_RejectsUnknownAction(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	_, err = service.AddTrigger(ctx, flow.ID, flow.Steps[0].ID, &models.Trigger{
		Title:        "bad",
		ActionType:   "explode",
		ActionValues: []string{"x"},
	}, "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownActionType)
}

func TestBindNewCase_ReturnsOrderedCurrentSnapshots(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	// Version the second step so the bind picks up the newer snapshot.
	_, err = service.AddField(ctx, flow.ID, flow.Steps[1].ID, &models.Field{
		Title: "inspector",
		Type:  models.FieldTypeText,
	}, "user-1")
	require.NoError(t, err)

	bound, script, err := service.BindNewCase(ctx, flow.ID)
	require.NoError(t, err)
	require.Len(t, script, 2)

	assert.Equal(t, flow.ID, bound.ID)
	assert.Equal(t, flow.Steps[0].ID, script[0].StepID)
	assert.Equal(t, 1, script[0].Version)
	assert.Equal(t, flow.Steps[1].ID, script[1].StepID)
	assert.Equal(t, 2, script[1].Version)
}

func TestBindNewCase_ExpandsSubflowSteps(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	child, err := service.CreateFlow(ctx, &models.Flow{
		Title: "Damage assessment",
		Steps: []*models.Step{
			{Title: "Assess", Kind: models.StepKindForm, Fields: []*models.Field{
				{Title: "damage_level", Type: models.FieldTypeInteger},
			}},
		},
	}, "user-1")
	require.NoError(t, err)

	parent, err := service.CreateFlow(ctx, &models.Flow{
		Title:   "Incident intake",
		Initial: true,
		Steps: []*models.Step{
			{Title: "Intake", Kind: models.StepKindForm, Fields: []*models.Field{
				{Title: "summary", Type: models.FieldTypeText},
			}},
			{Title: "Assessment", Kind: models.StepKindSubflow, ChildFlowID: child.ID},
		},
	}, "user-1")
	require.NoError(t, err)

	_, script, err := service.BindNewCase(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, script, 2)

	assert.Equal(t, parent.Steps[0].ID, script[0].StepID)
	assert.Equal(t, child.Steps[0].ID, script[1].StepID)
}

func TestBindNewCase_DetectsSubflowCycle(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)

	// Point a subflow step back at the same flow.
	_, err = service.AddStep(ctx, flow.ID, &models.Step{
		Title:       "Loop",
		Kind:        models.StepKindSubflow,
		ChildFlowID: flow.ID,
	}, "user-1")
	require.NoError(t, err)

	_, _, err = service.BindNewCase(ctx, flow.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubflowCycle)
}

func TestBindNewCase_RejectsInactiveFlow(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	flow, err := service.CreateFlow(ctx, sampleFlow(), "user-1")
	require.NoError(t, err)
	require.NoError(t, service.DeactivateFlow(ctx, flow.ID, "user-1"))

	_, _, err = service.BindNewCase(ctx, flow.ID)
	assert.ErrorIs(t, err, ErrFlowInactive)
}
