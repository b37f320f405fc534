package pipeline

import "fmt"

// Stage identifies a step of the five-stage review protocol.
type Stage int

const (
	StageInitial Stage = iota
	StageLineComments
	StageGeneralComments
	StageSecurity
	StageSummary
)

// String returns the stage name used in logs.
func (s Stage) String() string {
	switch s {
	case StageInitial:
		return "INITIAL"
	case StageLineComments:
		return "LINE_COMMENTS"
	case StageGeneralComments:
		return "GENERAL_COMMENTS"
	case StageSecurity:
		return "SECURITY"
	case StageSummary:
		return "SUMMARY"
	default:
		return fmt.Sprintf("STAGE(%d)", int(s))
	}
}

// StageStatus is the lifecycle state of a single stage within a run.
type StageStatus int

const (
	StatusPending StageStatus = iota
	StatusRunning
	StatusSucceeded
	StatusSkipped
	StatusFailed
)

// String returns the status name used in logs.
func (s StageStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminal reports whether a stage has reached an outcome.
func (s StageStatus) terminal() bool {
	return s == StatusSucceeded || s == StatusSkipped || s == StatusFailed
}

// prerequisites lists the stages that must be terminal before a stage may
// start. INITIAL gates the three analysis stages; SUMMARY requires all
// three to have finished (succeeded or skipped).
var prerequisites = map[Stage][]Stage{
	StageInitial:         {},
	StageLineComments:    {StageInitial},
	StageGeneralComments: {StageInitial},
	StageSecurity:        {StageInitial},
	StageSummary:         {StageLineComments, StageGeneralComments, StageSecurity},
}

// machine enforces the forward-only stage ordering for one run.
// The three analysis stages may be running concurrently; each stage can
// start at most once and can only finish after it started.
type machine struct {
	status map[Stage]StageStatus
}

func newMachine() *machine {
	return &machine{status: map[Stage]StageStatus{
		StageInitial:         StatusPending,
		StageLineComments:    StatusPending,
		StageGeneralComments: StatusPending,
		StageSecurity:        StatusPending,
		StageSummary:         StatusPending,
	}}
}

// start transitions a stage from pending to running, verifying its
// prerequisites are terminal. Transitions are forward-only: a stage that
// has already started or finished cannot start again.
func (m *machine) start(s Stage) error {
	if m.status[s] != StatusPending {
		return fmt.Errorf("stage %s cannot start from %s", s, m.status[s])
	}
	for _, pre := range prerequisites[s] {
		if !m.status[pre].terminal() {
			return fmt.Errorf("stage %s requires %s to finish, currently %s", s, pre, m.status[pre])
		}
		if m.status[pre] == StatusFailed {
			return fmt.Errorf("stage %s blocked by failed stage %s", s, pre)
		}
	}
	m.status[s] = StatusRunning
	return nil
}

// finish records a terminal outcome for a running stage.
func (m *machine) finish(s Stage, outcome StageStatus) error {
	if m.status[s] != StatusRunning {
		return fmt.Errorf("stage %s cannot finish from %s", s, m.status[s])
	}
	if !outcome.terminal() {
		return fmt.Errorf("stage %s: %s is not a terminal outcome", s, outcome)
	}
	m.status[s] = outcome
	return nil
}

// statusOf returns the recorded status for a stage.
func (m *machine) statusOf(s Stage) StageStatus {
	return m.status[s]
}
