package domain

// Status is the closed set of parent lifecycle states. Transitions go
// through the table below; anything else is ErrStateTransition.
type Status string

const (
	StatusNew               Status = "new"
	StatusActive            Status = "active"
	StatusInReviewAdmin     Status = "in_review_admin"
	StatusInReviewClient    Status = "in_review_client"
	StatusRevisionRequested Status = "revision_requested"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// transitions is the full state machine. Completed is reachable from
// revision_requested because a bundled parent may finish through one
// label's approval while another label sits in revision.
var transitions = map[Status][]Status{
	StatusNew:               {StatusActive, StatusCancelled},
	StatusActive:            {StatusInReviewAdmin, StatusInReviewClient, StatusCancelled},
	StatusInReviewAdmin:     {StatusInReviewClient, StatusActive, StatusCancelled},
	StatusInReviewClient:    {StatusCompleted, StatusRevisionRequested, StatusCancelled},
	StatusRevisionRequested: {StatusActive, StatusInReviewAdmin, StatusInReviewClient, StatusCompleted, StatusCancelled},
	StatusCompleted:         {},
	StatusCancelled:         {},
}

// Valid reports whether the status is one of the closed set.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	targets, ok := transitions[s]
	return ok && len(targets) == 0
}

// CanTransition reports whether the move to the target state is legal.
func (s Status) CanTransition(to Status) bool {
	for _, target := range transitions[s] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the target state.
func (s Status) Transition(to Status) (Status, error) {
	if !s.CanTransition(to) {
		return s, ErrStateTransition
	}
	return to, nil
}
