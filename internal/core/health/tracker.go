// Package health converts a node's stream of poll observations into health
// transitions.
//
// The Tracker is a pure state machine: it performs no I/O and is driven only
// by Apply. Each node owns exactly one Tracker, advanced sequentially by that
// node's polling goroutine.
//
//	UP ──(error x threshold)──> DOWN ──(success)──> UP / CATCHING_UP / STALLED
//	UP ──(height flat > stall threshold)──> STALLED ──(height up)──> UP
//	any ──(catching_up)──> CATCHING_UP
//	UP / CATCHING_UP ──(jailed / missed blocks)──> VALIDATOR_ISSUE
package health

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/nodewatch/internal/core/domain"
)

// ErrOutOfOrder is returned when an observation is older than the last one applied.
var ErrOutOfOrder = errors.New("observation out of order")

// Result is the outcome of applying one observation.
type Result struct {
	// Status is the node's status after the observation.
	Status domain.Status
	// Event is set only when Status differs from the previous status.
	Event *domain.HealthEvent
	// Details describes the current condition for alert text.
	Details string
}

// Tracker holds the health state machine of one node.
type Tracker struct {
	node  domain.NodeConfig
	state NodeHealthState
}

// NewTracker creates a tracker in the initial (UP) state.
func NewTracker(node domain.NodeConfig) *Tracker {
	return &Tracker{node: node, state: InitialState()}
}

// RestoreTracker creates a tracker from a persisted snapshot.
func RestoreTracker(node domain.NodeConfig, snap domain.NodeSnapshot) *Tracker {
	return &Tracker{node: node, state: StateFromSnapshot(snap)}
}

// State returns a copy of the current state.
func (t *Tracker) State() NodeHealthState {
	return t.state
}

// Snapshot returns the persisted form of the current state.
func (t *Tracker) Snapshot(now time.Time) domain.NodeSnapshot {
	return t.state.Snapshot(t.node.Moniker, now)
}

// Apply advances the state machine with one observation.
func (t *Tracker) Apply(obs domain.Observation) (Result, error) {
	s := &t.state
	if !s.LastObservedAt.IsZero() && obs.ObservedAt.Before(s.LastObservedAt) {
		return Result{Status: s.Status}, fmt.Errorf(
			"%w: %s at %s, last applied %s",
			ErrOutOfOrder, t.node.Moniker,
			obs.ObservedAt.Format(time.RFC3339Nano),
			s.LastObservedAt.Format(time.RFC3339Nano),
		)
	}
	s.LastObservedAt = obs.ObservedAt

	prev := s.Status
	recovered := false

	if obs.Failed() {
		s.ConsecutiveFailures++
		s.LastError = obs.Err.Error()
		if s.ConsecutiveFailures >= t.node.FailureThreshold {
			s.Condition = domain.StatusDown
		}
	} else {
		s.ConsecutiveFailures = 0
		s.LastError = ""
		if s.Condition == domain.StatusDown {
			s.Condition = domain.StatusUp
			recovered = true
		}
		t.applyHeight(obs)
		t.applyValidator(obs.Validator)
	}

	next := s.effective()
	res := Result{Status: next, Details: t.describe(next)}
	if next == prev {
		return res, nil
	}

	s.Status = next
	s.LastTransitionAt = obs.ObservedAt
	res.Event = &domain.HealthEvent{
		ID:          uuid.New().String(),
		NodeID:      t.node.Moniker,
		Previous:    prev,
		Current:     next,
		ObservedAt:  obs.ObservedAt,
		Recovered:   recovered,
		Details:     res.Details,
		Observation: obs,
	}
	return res, nil
}

// applyHeight evaluates catching-up and stall rules on a successful poll.
func (t *Tracker) applyHeight(obs domain.Observation) {
	s := &t.state
	if obs.Height == nil {
		return
	}
	height := *obs.Height
	catchingUp := obs.CatchingUp != nil && *obs.CatchingUp

	increased := s.LastIncreaseAt.IsZero() || height > s.LastHeight
	switch {
	case increased:
		s.LastHeight = height
		s.LastIncreaseAt = obs.ObservedAt
	case height < s.LastHeight:
		// Regression counts as no progress; the stall clock keeps running
		// from the last increase.
		s.LastHeight = height
	}

	if catchingUp {
		s.Condition = domain.StatusCatchingUp
		return
	}

	switch {
	case increased:
		s.Condition = domain.StatusUp
	case obs.ObservedAt.Sub(s.LastIncreaseAt) > t.node.StallThreshold:
		s.Condition = domain.StatusStalled
	case s.Condition == domain.StatusCatchingUp:
		s.Condition = domain.StatusUp
	}
}

// applyValidator updates the validator overlay. Missing info keeps the
// previous verdict.
func (t *Tracker) applyValidator(v *domain.ValidatorInfo) {
	if v == nil {
		return
	}
	s := &t.state
	info := *v
	s.Validator = &info
	s.ValidatorIssue = v.Jailed || v.Tombstoned ||
		(t.node.MissedBlocksThreshold > 0 && v.MissedBlocks >= t.node.MissedBlocksThreshold)
}

func (t *Tracker) describe(status domain.Status) string {
	s := t.state
	var text string
	switch status {
	case domain.StatusDown:
		text = fmt.Sprintf("%d consecutive failed polls", s.ConsecutiveFailures)
		if s.LastError != "" {
			text += ": " + s.LastError
		}
	case domain.StatusStalled:
		text = fmt.Sprintf("height %d has not increased since %s",
			s.LastHeight, s.LastIncreaseAt.UTC().Format(time.RFC3339))
	case domain.StatusCatchingUp:
		text = fmt.Sprintf("node is catching up, at height %d", s.LastHeight)
	case domain.StatusValidatorIssue:
		text = t.validatorDetails()
	default:
		text = fmt.Sprintf("height %d", s.LastHeight)
	}

	if status != domain.StatusValidatorIssue && s.ValidatorIssue {
		text += "; also " + t.validatorDetails()
	}
	return text
}

func (t *Tracker) validatorDetails() string {
	v := t.state.Validator
	switch {
	case v == nil:
		return "validator unhealthy"
	case v.Tombstoned:
		return "validator is tombstoned"
	case v.Jailed:
		return "validator is jailed"
	default:
		return fmt.Sprintf("validator missed %d blocks (threshold %d)",
			v.MissedBlocks, t.node.MissedBlocksThreshold)
	}
}
