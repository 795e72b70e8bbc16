package cases

import (
	"sort"

	"github.com/urbanite/caseflow/pkg/models"
)

// EvaluateTriggers matches a step's active triggers against the field values
// just persisted. Triggers are evaluated in definition order; a trigger
// matches iff every active condition matches, and a trigger with no
// conditions always matches. Every match is returned, in order.
func EvaluateTriggers(step *models.Step, values []*models.CaseStepField) []*models.Trigger {
	byField := make(map[string]any, len(values))
	for _, value := range values {
		byField[value.FieldID] = value.Value
	}

	triggers := step.ActiveTriggers()
	sort.SliceStable(triggers, func(i, j int) bool { return triggers[i].Order < triggers[j].Order })

	matched := make([]*models.Trigger, 0, len(triggers))

	for _, trigger := range triggers {
		if triggerMatches(trigger, byField) {
			matched = append(matched, trigger)
		}
	}

	return matched
}

func triggerMatches(trigger *models.Trigger, byField map[string]any) bool {
	for _, condition := range trigger.Conditions {
		if !condition.Active {
			continue
		}

		if !condition.Match(byField[condition.FieldID]) {
			return false
		}
	}

	return true
}
