package runner

import "fmt"

// ProcessStuckError The process ignored the termination signal and had to be killed
type ProcessStuckError struct {
	PID int
}

func (m *ProcessStuckError) Error() string {
	return fmt.Sprintf("process with pid %d was stuck", m.PID)
}

func (e *ProcessStuckError) Is(tgt error) bool {
	_, ok := tgt.(*ProcessStuckError)
	return ok
}

// ProcessNotStartedError The executable could not be spawned at all
type ProcessNotStartedError struct {
	msg string
}

func (m *ProcessNotStartedError) Error() string {
	return m.msg
}

func (e *ProcessNotStartedError) Is(tgt error) bool {
	_, ok := tgt.(*ProcessNotStartedError)
	return ok
}

func NewProcessNotStartedError(err error) error {
	return &ProcessNotStartedError{err.Error()}
}
