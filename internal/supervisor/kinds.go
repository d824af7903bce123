package supervisor

// JobKind identifies one of the external tools under supervision
type JobKind string

const (
	Capture     JobKind = "capture"
	Controller  JobKind = "controller"
	IperfClient JobKind = "iperf-client"
	IperfServer JobKind = "iperf-server"
)

// State of a job handle. A handle starts Running (Idle only exists for
// kinds that never launched) and ends in exactly one of the terminal states.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateExited
	StateTimedOut
	// StateTerminated marks a forced teardown driven by the supervisor,
	// distinct from a natural exit
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateTimedOut:
		return "timed-out"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateExited || s == StateTimedOut || s == StateTerminated
}
