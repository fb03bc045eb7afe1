package domain

import (
	"fmt"
	"time"
)

// AlertKey identifies one ongoing condition of one node.
type AlertKey struct {
	NodeID NodeID
	Status Status
}

func (k AlertKey) String() string {
	return fmt.Sprintf("%s:%s", k.NodeID, k.Status)
}

// AlertRecord remembers when the last notification for a key went out.
type AlertRecord struct {
	Key    AlertKey
	SentAt time.Time
}

// NodeSnapshot is the persisted form of a node's health state.
type NodeSnapshot struct {
	NodeID              NodeID    `json:"node_id"`
	Status              Status    `json:"status"`
	Condition           Status    `json:"condition"`
	LastHeight          int64     `json:"last_height"`
	LastIncreaseAt      time.Time `json:"last_increase_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastTransitionAt    time.Time `json:"last_transition_at"`
	LastObservedAt      time.Time `json:"last_observed_at"`
	ValidatorIssue      bool      `json:"validator_issue"`
	LastError           string    `json:"last_error,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}
