package orchestrator

// Stage is a state of one submission session.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageConnecting
	StageChainChecking
	StageApproving
	StageAwaitingApproval
	StageEntering
	StageAwaitingEntry
	StagePersisting
	StageCompleted
	StageFailed
)

var stageNames = [...]string{
	StageIdle:             "idle",
	StageValidating:       "validating",
	StageConnecting:       "connecting",
	StageChainChecking:    "chain-checking",
	StageApproving:        "approving",
	StageAwaitingApproval: "awaiting-approval",
	StageEntering:         "entering",
	StageAwaitingEntry:    "awaiting-entry",
	StagePersisting:       "persisting",
	StageCompleted:        "completed",
	StageFailed:           "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Progress lists the non-terminal stages of a successful run in order.
func Progress() []Stage {
	return []Stage{
		StageValidating,
		StageConnecting,
		StageChainChecking,
		StageApproving,
		StageAwaitingApproval,
		StageEntering,
		StageAwaitingEntry,
		StagePersisting,
	}
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}
