package cases

import "errors"

var (
	// ErrPermissionDenied indicates the actor lacks the capability the
	// operation requires. Nothing is mutated.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStepDisabled indicates a submission targeted a step a trigger has
	// disabled on this case.
	ErrStepDisabled = errors.New("step is disabled")

	// ErrCaseFinished indicates a submission or transfer targeted a case
	// whose status is terminal.
	ErrCaseFinished = errors.New("case is finished")

	// ErrCaseNotRestorable indicates a restore targeted a case that is not
	// inactive.
	ErrCaseNotRestorable = errors.New("case is not inactive")

	// ErrNotInitialFlow indicates case creation targeted a flow that is not
	// a case entry point.
	ErrNotInitialFlow = errors.New("flow is not a case entry point")
)

// NoticeAlreadyFinished is returned when finishing a case that is already
// finished. The operation succeeds without changing state.
const NoticeAlreadyFinished = "case is already finished"
