package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sigbench/sigctl/internal/runner"
	"github.com/sigbench/sigctl/pkg/log"
	"github.com/sigbench/sigctl/pkg/misc"
)

// JobHandle binds one launched process to its descriptor. It is owned by the
// supervisor, callers only inspect it.
type JobHandle struct {
	ID   string
	Desc JobDescriptor

	proc   *runner.Proc
	cancel context.CancelFunc

	// The run bound used for the timed-out classification, 0 if unbounded
	bound time.Duration

	mu      sync.Mutex
	state   State
	exitErr error
}

func newJobHandle(desc JobDescriptor, proc *runner.Proc, cancel context.CancelFunc, bound time.Duration) *JobHandle {
	return &JobHandle{
		ID:     uuid.NewString(),
		Desc:   desc,
		proc:   proc,
		cancel: cancel,
		bound:  bound,
		state:  StateRunning,
	}
}

func (h *JobHandle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the recorded exit error, nil while running or after a clean exit
func (h *JobHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// wait blocks until the process result arrives and classifies it.
// Only the first terminal transition sticks, a forced kill that already
// marked the handle Terminated wins over the late wait result.
func (h *JobHandle) wait() error {
	err := <-h.proc.Wait()
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateRunning {
		return h.exitErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.state = StateTimedOut
		h.exitErr = misc.NewTimedOutError("job "+h.Desc.Name()+" exceeded its run bound", h.bound)
	case errors.Is(err, context.Canceled):
		h.state = StateTerminated
		h.exitErr = nil
	default:
		h.state = StateExited
		h.exitErr = err
	}

	return h.exitErr
}

// kill force-terminates the process group immediately and reaps the result.
// The handle ends up Terminated unless the process already finished on its
// own before the kill landed.
func (h *JobHandle) kill() {
	h.mu.Lock()
	running := h.state == StateRunning
	if running {
		h.state = StateTerminated
	}
	h.mu.Unlock()

	if !running {
		return
	}

	if err := h.proc.Kill(); err != nil {
		// The process may have just exited, the wait below reaps it either way
		log.Debug("kill signal not delivered", zap.String("job", h.Desc.Name()), zap.Error(err))
	}

	// Reap the process, the state is already settled
	<-h.proc.Wait()
	h.cancel()

	log.Info("job terminated by supervisor", zap.String("job", h.Desc.Name()), zap.String("id", h.ID))
}
