package models

import (
	"errors"
	"fmt"
)

// Action type tags as stored on trigger definitions.
const (
	ActionTypeDisableSteps = "disable_steps"
	ActionTypeFinishFlow   = "finish_flow"
	ActionTypeTransferFlow = "transfer_flow"
)

// ErrUnknownActionType is returned when a trigger carries an action type the
// engine does not implement.
var ErrUnknownActionType = errors.New("unknown action type")

// CaseAction is the closed set of actions a fired trigger (or a direct user
// request) can apply to a case. Executors switch exhaustively on the
// concrete types.
type CaseAction interface {
	ActionType() string
}

// DisableSteps marks the listed steps as no longer submittable on the case.
type DisableSteps struct {
	StepIDs []string
}

func (DisableSteps) ActionType() string { return ActionTypeDisableSteps }

// FinishFlow terminates the case with a resolution state.
type FinishFlow struct {
	ResolutionStateID string
}

func (FinishFlow) ActionType() string { return ActionTypeFinishFlow }

// TransferFlow moves the case into another flow by spawning a child case.
type TransferFlow struct {
	TargetFlowID string
}

func (TransferFlow) ActionType() string { return ActionTypeTransferFlow }

// ParseAction converts the stored (action_type, action_values) pair of a
// trigger definition into a CaseAction.
func ParseAction(actionType string, values []string) (CaseAction, error) {
	switch actionType {
	case ActionTypeDisableSteps:
		if len(values) == 0 {
			return nil, fmt.Errorf("disable_steps action requires at least one step id")
		}

		return DisableSteps{StepIDs: values}, nil
	case ActionTypeFinishFlow:
		if len(values) == 0 {
			return nil, fmt.Errorf("finish_flow action requires a resolution state id")
		}

		return FinishFlow{ResolutionStateID: values[0]}, nil
	case ActionTypeTransferFlow:
		if len(values) == 0 {
			return nil, fmt.Errorf("transfer_flow action requires a target flow id")
		}

		return TransferFlow{TargetFlowID: values[0]}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, actionType)
	}
}
