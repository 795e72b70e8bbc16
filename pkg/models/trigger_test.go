package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerCondition_Equals(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionEquals, Values: []string{"10"}}

	assert.True(t, cond.Match("10"))
	assert.True(t, cond.Match(10))
	assert.True(t, cond.Match("10.0"), "numeric comparison when both sides parse")
	assert.False(t, cond.Match("1"))
	assert.False(t, cond.Match(nil))
}

func TestTriggerCondition_EqualsNonNumeric(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionEquals, Values: []string{"usa"}}

	assert.True(t, cond.Match("usa"))
	assert.False(t, cond.Match("brazil"))
}

func TestTriggerCondition_NotEquals(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionNotEquals, Values: []string{"10"}}

	assert.False(t, cond.Match("10"))
	assert.True(t, cond.Match("11"))
	assert.True(t, cond.Match(nil))
}

func TestTriggerCondition_GreaterThan(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionGreaterThan, Values: []string{"18"}}

	assert.True(t, cond.Match("19"))
	assert.True(t, cond.Match(int64(150)))
	assert.False(t, cond.Match("18"))
	assert.False(t, cond.Match("17"))
	assert.False(t, cond.Match("not a number"))
}

func TestTriggerCondition_LesserThan(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionLesserThan, Values: []string{"18"}}

	assert.True(t, cond.Match("17"))
	assert.False(t, cond.Match("18"))
	assert.False(t, cond.Match("19"))
}

func TestTriggerCondition_Includes(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionIncludes, Values: []string{"2", "3"}}

	assert.True(t, cond.Match([]string{"1", "2", "3"}))
	assert.False(t, cond.Match([]string{"1", "2"}), "every comparison value must be present")
	assert.False(t, cond.Match([]string{}))
	assert.True(t, cond.Match([]any{"3", "2"}))
}

func TestTriggerCondition_IncludesScalar(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionIncludes, Values: []string{"2"}}

	assert.True(t, cond.Match("2"), "scalar submission is a one-element set")
	assert.False(t, cond.Match("3"))
}

func TestTriggerCondition_Excludes(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionExcludes, Values: []string{"2", "3"}}

	assert.True(t, cond.Match([]string{"1", "4"}))
	assert.False(t, cond.Match([]string{"1", "2"}), "none of the comparison values may be present")
	assert.True(t, cond.Match([]string{}))
}

func TestTriggerCondition_UnknownOperator(t *testing.T) {
	cond := &TriggerCondition{Type: ConditionType("regex"), Values: []string{".*"}}

	assert.False(t, cond.Match("anything"))
}

func TestTrigger_Action(t *testing.T) {
	trigger := &Trigger{
		ActionType:   ActionTypeFinishFlow,
		ActionValues: []string{"rs-1"},
	}

	action, err := trigger.Action()
	assert.NoError(t, err)
	assert.Equal(t, FinishFlow{ResolutionStateID: "rs-1"}, action)
}
