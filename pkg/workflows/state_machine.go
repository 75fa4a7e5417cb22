package workflows

// StateMachine enforces project lifecycle transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewProjectLifecycle creates the state machine for project review.
// APPROVED and REJECTED are terminal; an approved or rejected project
// never transitions again.
func NewProjectLifecycle() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"SUBMITTED":    {"UNDER_REVIEW", "APPROVED", "REJECTED"},
			"UNDER_REVIEW": {"APPROVED", "REJECTED"},
			"APPROVED":     {},
			"REJECTED":     {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether no further transitions are possible
func (sm *StateMachine) IsTerminal(status string) bool {
	return len(sm.allowedTransitions[status]) == 0
}
