package models

import (
	"fmt"
	"strconv"
)

// ConditionType enumerates the comparison operators a trigger condition can
// apply to a submitted field value.
type ConditionType string

const (
	ConditionEquals      ConditionType = "equals"
	ConditionNotEquals   ConditionType = "not_equals"
	ConditionGreaterThan ConditionType = "greater_than"
	ConditionLesserThan  ConditionType = "lesser_than"
	ConditionIncludes    ConditionType = "includes"
	ConditionExcludes    ConditionType = "excludes"
)

// TriggerCondition is one guard of a trigger: a field, an operator and the
// comparison value set.
type TriggerCondition struct {
	ID      string        `json:"id"`
	FieldID string        `json:"field_id" validate:"required"`
	Type    ConditionType `json:"condition_type" validate:"required"`
	Values  []string      `json:"values" validate:"required,min=1"`
	Active  bool          `json:"active"`
}

// Trigger fires an action against a case when all of its conditions match
// the values just submitted to its step. A trigger without conditions
// always fires.
type Trigger struct {
	ID           string              `json:"id"`
	StepID       string              `json:"step_id"`
	Title        string              `json:"title" validate:"required"`
	Description  string              `json:"description,omitempty"`
	Conditions   []*TriggerCondition `json:"conditions"`
	ActionType   string              `json:"action_type" validate:"required"`
	ActionValues []string            `json:"action_values" validate:"required,min=1"`
	Order        int                 `json:"order"`
	Active       bool                `json:"active"`
}

// Action parses the trigger's action type and values into a CaseAction.
func (t *Trigger) Action() (CaseAction, error) {
	return ParseAction(t.ActionType, t.ActionValues)
}

// Match evaluates the condition's operator against a submitted field value.
// Scalar operators take the first comparison value; set operators treat the
// whole comparison list. An unknown operator never matches.
func (c *TriggerCondition) Match(submitted any) bool {
	switch c.Type {
	case ConditionEquals:
		return scalarEquals(submitted, c.firstValue())
	case ConditionNotEquals:
		return !scalarEquals(submitted, c.firstValue())
	case ConditionGreaterThan:
		got, want, ok := numericPair(submitted, c.firstValue())

		return ok && got > want
	case ConditionLesserThan:
		got, want, ok := numericPair(submitted, c.firstValue())

		return ok && got < want
	case ConditionIncludes:
		set := valueSet(submitted)
		for _, want := range c.Values {
			if _, ok := set[want]; !ok {
				return false
			}
		}

		return true
	case ConditionExcludes:
		set := valueSet(submitted)
		for _, want := range c.Values {
			if _, ok := set[want]; ok {
				return false
			}
		}

		return true
	}

	return false
}

func (c *TriggerCondition) firstValue() string {
	if len(c.Values) == 0 {
		return ""
	}

	return c.Values[0]
}

// scalarEquals compares numerically when both sides parse as numbers, so
// "10" matches 10 and "1.0" matches "1".
func scalarEquals(submitted any, want string) bool {
	got := scalarString(submitted)

	if gotN, err1 := strconv.ParseFloat(got, 64); err1 == nil {
		if wantN, err2 := strconv.ParseFloat(want, 64); err2 == nil {
			return gotN == wantN
		}
	}

	return got == want
}

func numericPair(submitted any, want string) (float64, float64, bool) {
	gotN, err1 := strconv.ParseFloat(scalarString(submitted), 64)
	wantN, err2 := strconv.ParseFloat(want, 64)

	return gotN, wantN, err1 == nil && err2 == nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// valueSet normalizes a submitted value into a string set. Multi-value
// submissions arrive as []string or []any; scalars become one-element sets.
func valueSet(v any) map[string]struct{} {
	set := make(map[string]struct{})

	switch vs := v.(type) {
	case nil:
	case []string:
		for _, item := range vs {
			set[item] = struct{}{}
		}
	case []any:
		for _, item := range vs {
			set[scalarString(item)] = struct{}{}
		}
	default:
		set[scalarString(v)] = struct{}{}
	}

	return set
}
