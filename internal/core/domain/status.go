package domain

// Status is the health classification of a node.
type Status string

const (
	StatusUp             Status = "UP"
	StatusStalled        Status = "STALLED"
	StatusDown           Status = "DOWN"
	StatusCatchingUp     Status = "CATCHING_UP"
	StatusValidatorIssue Status = "VALIDATOR_ISSUE"

	// StatusUnreachable is used for auxiliary sources such as the release
	// feed; nodes never take it.
	StatusUnreachable Status = "UNREACHABLE"
)

// NodeStatuses lists every status a node can take, in display order.
var NodeStatuses = []Status{
	StatusUp,
	StatusStalled,
	StatusDown,
	StatusCatchingUp,
	StatusValidatorIssue,
}

// AllStatuses is NodeStatuses plus the auxiliary statuses.
var AllStatuses = append(append([]Status(nil), NodeStatuses...), StatusUnreachable)

// IsProblem reports whether the status needs attention.
func (s Status) IsProblem() bool {
	return s != StatusUp
}

// Severity orders statuses when several conditions hold at once.
// Higher wins.
func (s Status) Severity() int {
	switch s {
	case StatusDown, StatusUnreachable:
		return 4
	case StatusStalled:
		return 3
	case StatusValidatorIssue:
		return 2
	case StatusCatchingUp:
		return 1
	default:
		return 0
	}
}

func (s Status) String() string {
	return string(s)
}
