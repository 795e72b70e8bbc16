package cases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanite/caseflow/pkg/models"
)

func evalStep() *models.Step {
	return &models.Step{
		ID:     "step-1",
		Active: true,
		Triggers: []*models.Trigger{
			{
				ID: "tr-2", Order: 1, Active: true,
				ActionType: models.ActionTypeDisableSteps, ActionValues: []string{"step-2"},
				Conditions: []*models.TriggerCondition{
					{FieldID: "f-kind", Type: models.ConditionEquals, Values: []string{"urgent"}, Active: true},
					{FieldID: "f-count", Type: models.ConditionGreaterThan, Values: []string{"5"}, Active: true},
				},
			},
			{
				ID: "tr-1", Order: 0, Active: true,
				ActionType: models.ActionTypeFinishFlow, ActionValues: []string{"rs-1"},
				Conditions: []*models.TriggerCondition{
					{FieldID: "f-kind", Type: models.ConditionEquals, Values: []string{"urgent"}, Active: true},
				},
			},
			{
				ID: "tr-inactive", Order: 2, Active: false,
				ActionType: models.ActionTypeFinishFlow, ActionValues: []string{"rs-1"},
			},
		},
	}
}

func values(pairs map[string]any) []*models.CaseStepField {
	fields := make([]*models.CaseStepField, 0, len(pairs))
	for id, value := range pairs {
		fields = append(fields, &models.CaseStepField{FieldID: id, Value: value})
	}

	return fields
}

func TestEvaluateTriggers_AllConditionsMustMatch(t *testing.T) {
	matched := EvaluateTriggers(evalStep(), values(map[string]any{
		"f-kind": "urgent", "f-count": "3",
	}))

	require.Len(t, matched, 1)
	assert.Equal(t, "tr-1", matched[0].ID)
}

func TestEvaluateTriggers_DefinitionOrderPreserved(t *testing.T) {
	matched := EvaluateTriggers(evalStep(), values(map[string]any{
		"f-kind": "urgent", "f-count": "10",
	}))

	require.Len(t, matched, 2)
	assert.Equal(t, "tr-1", matched[0].ID)
	assert.Equal(t, "tr-2", matched[1].ID)
}

func TestEvaluateTriggers_EmptyConditionListAlwaysMatches(t *testing.T) {
	step := &models.Step{
		ID:     "step-1",
		Active: true,
		Triggers: []*models.Trigger{
			{ID: "tr-always", Active: true, ActionType: models.ActionTypeFinishFlow, ActionValues: []string{"rs-1"}},
		},
	}

	matched := EvaluateTriggers(step, nil)
	require.Len(t, matched, 1)
	assert.Equal(t, "tr-always", matched[0].ID)
}

func TestEvaluateTriggers_InactiveTriggersAndConditionsIgnored(t *testing.T) {
	step := evalStep()

	// Deactivating the count condition makes tr-2 fire on kind alone.
	step.Triggers[0].Conditions[1].Active = false

	matched := EvaluateTriggers(step, values(map[string]any{"f-kind": "urgent"}))
	require.Len(t, matched, 2)

	for _, trigger := range matched {
		assert.NotEqual(t, "tr-inactive", trigger.ID)
	}
}

func TestEvaluateTriggers_MissingFieldDoesNotMatchEquals(t *testing.T) {
	matched := EvaluateTriggers(evalStep(), values(map[string]any{"f-count": "10"}))
	assert.Empty(t, matched)
}
