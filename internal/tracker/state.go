package tracker

// State of the orchestrator within a cycle.
type State int32

const (
	Idle State = iota
	Checking
	Classifying
	Applying
	Notifying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Classifying:
		return "classifying"
	case Applying:
		return "applying"
	case Notifying:
		return "notifying"
	default:
		return "unknown"
	}
}

// Status summarizes how a cycle ended.
type Status string

const (
	StatusUnchanged      Status = "unchanged"
	StatusCheckFailed    Status = "check_failed"
	StatusSnapshotFailed Status = "snapshot_failed"
	StatusClassifyFailed Status = "classify_failed"
	StatusParseFailed    Status = "parse_failed"
	StatusSyncFailed     Status = "sync_failed"
	StatusDeclined       Status = "declined"
	StatusApplyFailed    Status = "apply_failed"
	StatusStorageFailed  Status = "storage_failed"
	StatusApplied        Status = "applied"
)
