package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction_DisableSteps(t *testing.T) {
	action, err := ParseAction(ActionTypeDisableSteps, []string{"step-1", "step-2"})
	require.NoError(t, err)

	disable, ok := action.(DisableSteps)
	require.True(t, ok)
	assert.Equal(t, []string{"step-1", "step-2"}, disable.StepIDs)
}

func TestParseAction_FinishFlow(t *testing.T) {
	action, err := ParseAction(ActionTypeFinishFlow, []string{"rs-1"})
	require.NoError(t, err)

	assert.Equal(t, FinishFlow{ResolutionStateID: "rs-1"}, action)
}

func TestParseAction_TransferFlow(t *testing.T) {
	action, err := ParseAction(ActionTypeTransferFlow, []string{"flow-2"})
	require.NoError(t, err)

	assert.Equal(t, TransferFlow{TargetFlowID: "flow-2"}, action)
}

func TestParseAction_EmptyValues(t *testing.T) {
	for _, actionType := range []string{ActionTypeDisableSteps, ActionTypeFinishFlow, ActionTypeTransferFlow} {
		_, err := ParseAction(actionType, nil)
		assert.Error(t, err, actionType)
	}
}

func TestParseAction_UnknownType(t *testing.T) {
	_, err := ParseAction("escalate", []string{"x"})
	assert.ErrorIs(t, err, ErrUnknownActionType)
}
