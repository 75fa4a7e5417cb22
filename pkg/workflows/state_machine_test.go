package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectLifecycleTransitions(t *testing.T) {
	sm := NewProjectLifecycle()

	assert.True(t, sm.CanTransition("SUBMITTED", "UNDER_REVIEW"))
	assert.True(t, sm.CanTransition("SUBMITTED", "APPROVED"))
	assert.True(t, sm.CanTransition("SUBMITTED", "REJECTED"))
	assert.True(t, sm.CanTransition("UNDER_REVIEW", "APPROVED"))
	assert.True(t, sm.CanTransition("UNDER_REVIEW", "REJECTED"))

	assert.False(t, sm.CanTransition("UNDER_REVIEW", "SUBMITTED"))
	assert.False(t, sm.CanTransition("APPROVED", "REJECTED"))
	assert.False(t, sm.CanTransition("REJECTED", "APPROVED"))
	assert.False(t, sm.CanTransition("APPROVED", "APPROVED"))
	assert.False(t, sm.CanTransition("UNKNOWN", "APPROVED"))
}

func TestTerminalStates(t *testing.T) {
	sm := NewProjectLifecycle()

	assert.True(t, sm.IsTerminal("APPROVED"))
	assert.True(t, sm.IsTerminal("REJECTED"))
	assert.False(t, sm.IsTerminal("SUBMITTED"))
	assert.False(t, sm.IsTerminal("UNDER_REVIEW"))
}

func TestGetAllowedTransitions(t *testing.T) {
	sm := NewProjectLifecycle()

	assert.ElementsMatch(t, []string{"APPROVED", "REJECTED"}, sm.GetAllowedTransitions("UNDER_REVIEW"))
	assert.Empty(t, sm.GetAllowedTransitions("APPROVED"))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}
