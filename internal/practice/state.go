package practice

// State is a step of an attempt's lifecycle. States are entered strictly in
// declaration order; Failed may be entered from any non-terminal state.
type State int

const (
	Idle State = iota
	Requesting
	Recording
	Stopping
	Encoding
	AwaitingEvaluation
	Completed
	Failed
)

var stateNames = [...]string{
	Idle:               "idle",
	Requesting:         "requesting",
	Recording:          "recording",
	Stopping:           "stopping",
	Encoding:           "encoding",
	AwaitingEvaluation: "awaiting_evaluation",
	Completed:          "completed",
	Failed:             "failed",
}

// String returns the wire name of s.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// StopReason records why recording ended.
type StopReason int

const (
	// StopNone means recording never started.
	StopNone StopReason = iota

	// StopSilence means the learner was quiet for the silence window.
	StopSilence

	// StopMaxDuration means the hard cap was reached.
	StopMaxDuration

	// StopManual means the caller pressed stop.
	StopManual

	// StopCancelled means the attempt's context ended.
	StopCancelled
)

// String returns the wire name of r.
func (r StopReason) String() string {
	switch r {
	case StopSilence:
		return "silence"
	case StopMaxDuration:
		return "max_duration"
	case StopManual:
		return "manual"
	case StopCancelled:
		return "cancelled"
	default:
		return "none"
	}
}
