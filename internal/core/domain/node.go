package domain

import "time"

// NodeID identifies a monitored node. It is the node's moniker.
type NodeID string

// NodeConfig describes one monitored node. Immutable after load.
type NodeConfig struct {
	Moniker          NodeID
	RPCURL           string
	APIURL           string // LCD REST base, optional
	ValidatorAddress string // valcons address, optional

	PollInterval          time.Duration
	PollTimeout           time.Duration
	StallThreshold        time.Duration
	FailureThreshold      int
	AlertCooldown         time.Duration
	MissedBlocksThreshold int64
}

// IsValidator reports whether signing info can be queried for this node.
func (c NodeConfig) IsValidator() bool {
	return c.APIURL != "" && c.ValidatorAddress != ""
}
