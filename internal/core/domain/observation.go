package domain

import "time"

// ValidatorInfo is the signing state of the validator behind a node.
type ValidatorInfo struct {
	Jailed       bool  `json:"jailed"`
	Tombstoned   bool  `json:"tombstoned"`
	MissedBlocks int64 `json:"missed_blocks"`
}

// Observation is the outcome of a single poll.
// Height and CatchingUp are nil when the poll failed.
type Observation struct {
	NodeID     NodeID
	ObservedAt time.Time
	Height     *int64
	CatchingUp *bool
	Validator  *ValidatorInfo
	Err        error
}

// Failed reports whether the poll produced an error.
func (o Observation) Failed() bool {
	return o.Err != nil
}

// NewFailedObservation builds an observation for a failed poll.
func NewFailedObservation(id NodeID, at time.Time, err error) Observation {
	return Observation{NodeID: id, ObservedAt: at, Err: err}
}

// NewObservation builds an observation for a successful poll.
func NewObservation(id NodeID, at time.Time, height int64, catchingUp bool, v *ValidatorInfo) Observation {
	return Observation{
		NodeID:     id,
		ObservedAt: at,
		Height:     &height,
		CatchingUp: &catchingUp,
		Validator:  v,
	}
}

// NodeStatus is what a node reports about itself on one status query.
type NodeStatus struct {
	Moniker         string
	Network         string
	Height          int64
	LatestBlockTime time.Time
	CatchingUp      bool
	Validator       *ValidatorInfo
}
