package health

import (
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

// NodeHealthState is the mutable health record of one node.
// It is owned by the node's polling goroutine; nothing else writes it.
type NodeHealthState struct {
	// Status is the effective status reported to the outside.
	Status domain.Status
	// Condition is the height/reachability part of the status
	// (UP, STALLED, DOWN or CATCHING_UP). VALIDATOR_ISSUE is layered on top.
	Condition domain.Status

	LastHeight          int64
	LastIncreaseAt      time.Time
	ConsecutiveFailures int
	LastTransitionAt    time.Time
	LastObservedAt      time.Time

	ValidatorIssue bool
	Validator      *domain.ValidatorInfo
	LastError      string
}

// InitialState is the optimistic starting point; the first observation
// corrects it.
func InitialState() NodeHealthState {
	return NodeHealthState{
		Status:    domain.StatusUp,
		Condition: domain.StatusUp,
	}
}

// effective combines the height condition with the validator overlay.
func (s NodeHealthState) effective() domain.Status {
	if s.ValidatorIssue && domain.StatusValidatorIssue.Severity() > s.Condition.Severity() {
		return domain.StatusValidatorIssue
	}
	return s.Condition
}

// StateFromSnapshot rebuilds a state from its persisted form.
func StateFromSnapshot(snap domain.NodeSnapshot) NodeHealthState {
	s := NodeHealthState{
		Status:              snap.Status,
		Condition:           snap.Condition,
		LastHeight:          snap.LastHeight,
		LastIncreaseAt:      snap.LastIncreaseAt,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		LastTransitionAt:    snap.LastTransitionAt,
		LastObservedAt:      snap.LastObservedAt,
		ValidatorIssue:      snap.ValidatorIssue,
		LastError:           snap.LastError,
	}
	if s.Status == "" {
		s.Status = domain.StatusUp
	}
	if s.Condition == "" {
		s.Condition = s.Status
		if s.Condition == domain.StatusValidatorIssue {
			s.Condition = domain.StatusUp
		}
	}
	return s
}

// Snapshot returns the persisted form of the state.
func (s NodeHealthState) Snapshot(id domain.NodeID, now time.Time) domain.NodeSnapshot {
	return domain.NodeSnapshot{
		NodeID:              id,
		Status:              s.Status,
		Condition:           s.Condition,
		LastHeight:          s.LastHeight,
		LastIncreaseAt:      s.LastIncreaseAt,
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastTransitionAt:    s.LastTransitionAt,
		LastObservedAt:      s.LastObservedAt,
		ValidatorIssue:      s.ValidatorIssue,
		LastError:           s.LastError,
		UpdatedAt:           now,
	}
}

// StatusDescription returns a human-readable description of a status.
func StatusDescription(s domain.Status) string {
	switch s {
	case domain.StatusUp:
		return "Up - node reachable and producing blocks"
	case domain.StatusStalled:
		return "Stalled - block height not advancing"
	case domain.StatusDown:
		return "Down - node unreachable"
	case domain.StatusCatchingUp:
		return "Catching up - node is syncing historical blocks"
	case domain.StatusValidatorIssue:
		return "Validator issue - validator jailed or missing blocks"
	default:
		return "Unknown status"
	}
}
