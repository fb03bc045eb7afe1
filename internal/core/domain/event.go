package domain

import "time"

// HealthEvent is emitted whenever a node's status changes.
type HealthEvent struct {
	ID         string
	NodeID     NodeID
	Previous   Status
	Current    Status
	ObservedAt time.Time
	Recovered  bool // previous status was DOWN and the node answered again
	Details    string

	Observation Observation
}

// IsRecovery reports whether the event returns the node to UP.
func (e HealthEvent) IsRecovery() bool {
	return e.Current == StatusUp && e.Previous.IsProblem()
}
