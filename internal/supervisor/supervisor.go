// Package supervisor launches and coordinates the external tools of a
// capture experiment. Every job is an independent OS process, composed with
// blocking waits instead of poll loops. The composite operations implement
// the barrier policies of the test stand: wait-all for joint runs and a
// primary-gated forced teardown for capture-with-iperf runs.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sigbench/sigctl/internal/config"
	"github.com/sigbench/sigctl/internal/runner"
	"github.com/sigbench/sigctl/pkg/log"
)

var ErrJobAlreadyRunning = errors.New("a job of this kind is already running")

type Supervisor struct {
	set *DescriptorSet

	mu sync.Mutex

	// Mutable run parameters, re-read on every launch
	fileName   string
	runTime    float64
	clientAddr string

	slack time.Duration
	grace time.Duration

	// One handle per kind, the latest launch wins. Entries stay around
	// after exit so callers can inspect the final state.
	handles map[JobKind]*JobHandle
}

func New(conf *config.MainConfig) *Supervisor {
	return &Supervisor{
		set:        NewDescriptorSet(conf),
		fileName:   conf.Client.FileName,
		runTime:    conf.Client.RunTime,
		clientAddr: conf.Iperf.ClientAddr,
		slack:      conf.Timeouts.Slack(),
		grace:      conf.Timeouts.Grace(),
		handles:    make(map[JobKind]*JobHandle),
	}
}

func (s *Supervisor) Mode() config.Mode {
	return s.set.Mode()
}

func (s *Supervisor) SetFileName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileName = name
}

func (s *Supervisor) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileName
}

func (s *Supervisor) SetRunTime(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runTime = seconds
}

func (s *Supervisor) RunTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runTime
}

func (s *Supervisor) SetClientAddr(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientAddr = addr
}

func (s *Supervisor) ClientAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientAddr
}

// Handle returns the latest handle for the given kind, nil if the kind
// never launched.
func (s *Supervisor) Handle(kind JobKind) *JobHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[kind]
}

func (s *Supervisor) params() MaterializeParams {
	return MaterializeParams{
		FileName:   s.fileName,
		RunTime:    s.runTime,
		ClientAddr: s.clientAddr,
	}
}

// runBound returns the deadline budget for a kind, 0 means unbounded.
// Only the duration-parameterized tools get a bound, the iperf jobs request
// an effectively unbounded run time on purpose.
func (s *Supervisor) runBound(kind JobKind) time.Duration {
	if s.slack <= 0 {
		return 0
	}

	switch kind {
	case Capture, Controller:
		return time.Duration(s.runTime*float64(time.Second)) + s.slack
	}
	return 0
}

// launch materializes the descriptor for kind and spawns the process.
// At most one handle per kind may be running, a second start is refused.
func (s *Supervisor) launch(ctx context.Context, kind JobKind) (*JobHandle, error) {
	s.mu.Lock()

	if h := s.handles[kind]; h != nil && h.State() == StateRunning {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", kind, ErrJobAlreadyRunning)
	}

	desc, err := s.set.Materialize(kind, s.params())
	bound := s.runBound(kind)
	grace := s.grace
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var jobCtx context.Context
	var cancel context.CancelFunc
	if bound > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, bound)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}

	// The tools report their progress on stderr, pass it through
	proc := runner.New(jobCtx, exec.Command(desc.Executable, desc.Args...)).
		WithStreams(runner.CaptureStreams{StdERR: os.Stderr}).
		SetGracePeriod(grace)

	if err := proc.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("launching %s: %w", desc.Name(), err)
	}

	h := newJobHandle(desc, proc, cancel, bound)

	s.mu.Lock()
	s.handles[kind] = h
	s.mu.Unlock()

	log.Info("job launched",
		zap.String("job", desc.Name()),
		zap.String("id", h.ID),
		zap.Int("pid", proc.Pid()),
		zap.String("mode", string(s.set.Mode())),
	)

	return h, nil
}

// StartSingle launches one job and blocks until it has a recorded exit status.
func (s *Supervisor) StartSingle(ctx context.Context, kind JobKind) error {
	h, err := s.launch(ctx, kind)
	if err != nil {
		return err
	}

	err = h.wait()
	log.Info("job finished", zap.String("job", h.Desc.Name()), zap.String("state", h.State().String()), zap.Error(err))
	return err
}

// StartJoint launches both jobs concurrently and blocks until both have
// exited. Both processes are spawned before either is awaited. A launch
// failure of the second job tears down the first and propagates immediately,
// without waiting for anything unrelated.
func (s *Supervisor) StartJoint(ctx context.Context, kindA JobKind, kindB JobKind) error {
	a, err := s.launch(ctx, kindA)
	if err != nil {
		return err
	}

	b, err := s.launch(ctx, kindB)
	if err != nil {
		a.kill()
		return err
	}

	// Conjunctive barrier: return once both exit codes are present
	g := new(errgroup.Group)
	g.Go(a.wait)
	g.Go(b.wait)
	err = g.Wait()

	log.Info("joint run finished",
		zap.String("jobA", a.Desc.Name()), zap.String("stateA", a.State().String()),
		zap.String("jobB", b.Desc.Name()), zap.String("stateB", b.State().String()),
	)
	return err
}

// StartJointWithAux runs the capture job while an iperf server (always) and
// an iperf client (only when a client address is configured) generate
// traffic. Only the capture termination gates the operation: once it exits,
// both auxiliaries are force-killed regardless of their own state. Teardown
// never masks a capture failure.
func (s *Supervisor) StartJointWithAux(ctx context.Context) error {
	var auxes []*JobHandle
	teardown := func() {
		for _, h := range auxes {
			h.kill()
		}
	}

	// The client only runs when a target address is configured, otherwise
	// it is expected to run on a different machine
	if addr := s.ClientAddr(); addr != "" {
		client, err := s.launch(ctx, IperfClient)
		if err != nil {
			return err
		}
		auxes = append(auxes, client)
	} else {
		log.Debug("no iperf client address configured, client not spawned")
	}

	server, err := s.launch(ctx, IperfServer)
	if err != nil {
		teardown()
		return err
	}
	auxes = append(auxes, server)

	primary, err := s.launch(ctx, Capture)
	if err != nil {
		teardown()
		return err
	}

	// Asymmetric barrier: block on the primary only, then cancel the rest
	err = primary.wait()
	teardown()

	log.Info("capture with iperf finished",
		zap.String("state", primary.State().String()),
		zap.Int("auxiliaries", len(auxes)),
		zap.Error(err),
	)
	return err
}

// StartClientServerPair launches the iperf client and server concurrently
// and blocks until both exit naturally. No forced cancellation takes place.
func (s *Supervisor) StartClientServerPair(ctx context.Context) error {
	return s.StartJoint(ctx, IperfClient, IperfServer)
}
