package runner

import (
	"bufio"
	"context"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sigbench/sigctl/pkg/log"
	"go.uber.org/zap"
)

const (
	DefaultGracePeriod     = 5 * time.Second
	DefaultWriteBufferSize = 65535
)

// CaptureFile describes an output file a process stream gets written to.
type CaptureFile struct {
	path    string
	flags   int
	perm    fs.FileMode
	dirperm fs.FileMode
}

func NewCaptureFile(path string) *CaptureFile {
	return &CaptureFile{
		path:    path,
		flags:   os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
		perm:    0660,
		dirperm: 0770,
	}
}

func (f *CaptureFile) WithFlags(flags int) *CaptureFile {
	f.flags = flags
	return f
}

func (f *CaptureFile) WithPermissions(file fs.FileMode, dir fs.FileMode) *CaptureFile {
	f.perm = file
	f.dirperm = dir
	return f
}

func (f *CaptureFile) Path() string {
	return f.path
}

type CaptureFiles struct {
	StdOUT *CaptureFile
	StdERR *CaptureFile
}

type CaptureStreams struct {
	StdOUT io.Writer
	StdERR io.Writer
}

// Proc wraps a single external process with blocking-wait based supervision.
// The context passed at construction drives cancellation: once it fires, the
// process receives the termination signal and, after the grace period,
// SIGKILL.
type Proc struct {
	ctx context.Context
	cmd *exec.Cmd

	files   *CaptureFiles
	streams *CaptureStreams

	terminationSignal syscall.Signal
	gracePeriod       time.Duration
	useProcessGroup   bool
	writeBufferSize   int

	// Closers for the capture files, populated in Start
	closers []func() error

	result  chan error
	started bool
}

func New(ctx context.Context, cmd *exec.Cmd) *Proc {
	return &Proc{
		ctx:               ctx,
		cmd:               cmd,
		terminationSignal: syscall.SIGTERM,
		gracePeriod:       DefaultGracePeriod,
		useProcessGroup:   true,
		writeBufferSize:   DefaultWriteBufferSize,
		result:            make(chan error, 1),
	}
}

// WithFiles adds output files the process streams are captured into
func (p *Proc) WithFiles(files CaptureFiles) *Proc {
	p.files = &files
	return p
}

// WithStreams attaches additional writers, the caller keeps ownership
func (p *Proc) WithStreams(streams CaptureStreams) *Proc {
	p.streams = &streams
	return p
}

// SetTerminationSignal overrides SIGTERM, some tools need e.g. SIGINT to
// finish their output cleanly
func (p *Proc) SetTerminationSignal(sig syscall.Signal) *Proc {
	p.terminationSignal = sig
	return p
}

func (p *Proc) SetGracePeriod(period time.Duration) *Proc {
	p.gracePeriod = period
	return p
}

// SetTerminateMainOnly only signals the main pid, spawned children may
// survive. Only use this when you know what you are doing.
func (p *Proc) SetTerminateMainOnly() *Proc {
	p.useProcessGroup = false
	return p
}

// StdinPipe exposes the stdin pipe of the process, call before Start
func (p *Proc) StdinPipe() (io.WriteCloser, error) {
	return p.cmd.StdinPipe()
}

func (p *Proc) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *Proc) String() string {
	return p.cmd.String()
}

func createFile(file *CaptureFile) (*os.File, error) {
	if _, err := os.Stat(file.path); os.IsNotExist(err) {
		dirPath, err := filepath.Abs(filepath.Dir(file.path))
		if err != nil {
			log.Error("failed to get absolute path", zap.String("path", file.path))
			return nil, err
		}

		if err = os.MkdirAll(dirPath, file.dirperm); err != nil {
			log.Error("could not create required directories", zap.String("path", dirPath))
			return nil, err
		}
	}

	outfile, err := os.OpenFile(file.path, file.flags, file.perm)
	if err != nil {
		log.Error("could not create output file", zap.String("file", file.path))
		return nil, err
	}

	return outfile, nil
}

func (p *Proc) openCaptureFile(file *CaptureFile) (io.Writer, error) {
	if file == nil {
		return nil, nil
	}

	outfile, err := createFile(file)
	if err != nil {
		return nil, err
	}

	buffered := bufio.NewWriterSize(outfile, p.writeBufferSize)
	p.closers = append(p.closers, func() error {
		// Flush errors dont matter if close succeeds
		_ = buffered.Flush()
		return outfile.Close()
	})

	return buffered, nil
}

func (p *Proc) closeOutputs() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			log.Warn("could not close capture file", zap.Error(err))
		}
	}
	p.closers = nil
}

func (p *Proc) assembleOutputs() error {
	var stdout, stderr []io.Writer

	if p.streams != nil {
		if p.streams.StdOUT != nil {
			stdout = append(stdout, p.streams.StdOUT)
		}
		if p.streams.StdERR != nil {
			stderr = append(stderr, p.streams.StdERR)
		}
	}

	if p.files != nil {
		w, err := p.openCaptureFile(p.files.StdOUT)
		if err != nil {
			return err
		}
		if w != nil {
			stdout = append(stdout, w)
		}

		w, err = p.openCaptureFile(p.files.StdERR)
		if err != nil {
			return err
		}
		if w != nil {
			stderr = append(stderr, w)
		}
	}

	// Unconfigured streams go to /dev/null
	if len(stdout) > 0 {
		p.cmd.Stdout = io.MultiWriter(stdout...)
	}
	if len(stderr) > 0 {
		p.cmd.Stderr = io.MultiWriter(stderr...)
	}

	return nil
}

// Start spawns the process and begins supervising it.
// A spawn failure is reported as ProcessNotStartedError right away.
func (p *Proc) Start() error {
	if p.started {
		log.Panic("process was already started once", zap.String("cmd", p.cmd.String()))
	}
	p.started = true

	log.Debug("preparing command execution", zap.String("cmd", p.cmd.String()))

	if err := p.assembleOutputs(); err != nil {
		p.closeOutputs()
		return err
	}

	// Request a process group so all spawned children belong to us
	if p.useProcessGroup {
		p.cmd.SysProcAttr = &syscall.SysProcAttr{
			Setpgid: true,
		}
	}

	if err := p.cmd.Start(); err != nil {
		log.Error("could not start process", zap.String("cmd", p.cmd.String()), zap.Error(err))
		p.closeOutputs()

		// Remove the capture files, the process never ran
		if p.files != nil {
			if f := p.files.StdOUT; f != nil {
				_ = os.Remove(f.path)
			}
			if f := p.files.StdERR; f != nil {
				_ = os.Remove(f.path)
			}
		}

		return NewProcessNotStartedError(err)
	}

	go p.supervise()
	return nil
}

// Wait returns the channel the final process result gets delivered on.
// A natural exit delivers the plain cmd.Wait error, a cancelled context
// delivers ctx.Err() and a stuck process delivers ProcessStuckError.
func (p *Proc) Wait() <-chan error {
	return p.result
}

// Kill force-terminates the process group immediately, no grace period.
// The result still arrives on the Wait channel.
func (p *Proc) Kill() error {
	return syscall.Kill(p.targetPID(), syscall.SIGKILL)
}

func (p *Proc) targetPID() int {
	pid := p.cmd.Process.Pid
	if p.useProcessGroup {
		// The negative pid addresses the whole group
		return -pid
	}
	return pid
}

func (p *Proc) supervise() {
	done := make(chan error, 1)
	go func() {
		// This emits done as soon as the process exits
		done <- p.cmd.Wait()
	}()

	select {
	case err := <-done:
		p.closeOutputs()
		if status, ok := p.cmd.ProcessState.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			log.Info("process was terminated by signal", zap.Int("pid", p.Pid()), zap.Any("signal", status.Signal()))
		} else {
			log.Debug("process terminated", zap.Int("pid", p.Pid()), zap.Error(err))
		}
		p.result <- err
	case <-p.ctx.Done():
		err := p.terminate(done)
		p.closeOutputs()
		if err != nil {
			p.result <- err
			return
		}

		// The process honored the request, report why it was cancelled
		p.result <- p.ctx.Err()
	}
}

// terminate signals the process and escalates to SIGKILL after the grace
// period. Returns ProcessStuckError if the escalation was necessary.
func (p *Proc) terminate(done <-chan error) error {
	targetPID := p.targetPID()
	signalStr := p.terminationSignal.String()

	log.Info("invoking signal", zap.Int("pid", targetPID), zap.String("signal", signalStr))
	if err := syscall.Kill(targetPID, p.terminationSignal); err != nil {
		log.Warn("could not send signal to process", zap.Int("pid", targetPID), zap.String("signal", signalStr), zap.Error(err))
	}

	// SIGKILL is guaranteed to terminate, no grace handling needed
	if p.terminationSignal == syscall.SIGKILL {
		<-done
		return nil
	}

	select {
	case <-done:
		log.Info("process finished after cancellation request", zap.Int("pid", targetPID))
		return nil
	case <-time.After(p.gracePeriod):
		log.Warn("grace period reached, killing stuck process", zap.Int("pid", targetPID))

		if err := syscall.Kill(targetPID, syscall.SIGKILL); err != nil {
			log.Error("error sending SIGKILL to process", zap.Int("pid", targetPID), zap.Error(err))
		}

		// Wait needs to terminate correctly
		<-done
		return &ProcessStuckError{targetPID}
	}
}
