package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sigbench/sigctl/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(true)
	goleak.VerifyTestMain(m)
}

func TestStartAndWaitNaturalExit(t *testing.T) {
	p := New(context.Background(), exec.Command("/bin/sh", "-c", "exit 0"))

	require.NoError(t, p.Start())
	assert.NoError(t, <-p.Wait())
}

func TestWaitDeliversExitError(t *testing.T) {
	p := New(context.Background(), exec.Command("/bin/sh", "-c", "exit 7"))

	require.NoError(t, p.Start())

	err := <-p.Wait()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, exitErr.ExitCode())
}

func TestCaptureFileReceivesOutput(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out", "stdout.txt")

	p := New(context.Background(), exec.Command("/bin/sh", "-c", "echo hello")).
		WithFiles(CaptureFiles{StdOUT: NewCaptureFile(outPath)})

	require.NoError(t, p.Start())
	require.NoError(t, <-p.Wait())

	contents, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(contents))
}

func TestStartFailureIsDistinctError(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "stdout.txt")

	p := New(context.Background(), exec.Command("/nonexistent/tool")).
		WithFiles(CaptureFiles{StdOUT: NewCaptureFile(outPath)})

	err := p.Start()
	assert.ErrorIs(t, err, &ProcessNotStartedError{})

	// The capture file gets removed again, the process never ran
	assert.NoFileExists(t, outPath)
}

func TestContextCancellationTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := New(ctx, exec.Command("/bin/sh", "-c", "sleep 30")).
		SetGracePeriod(time.Second)
	require.NoError(t, p.Start())

	cancel()

	start := time.Now()
	err := <-p.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDeadlineDeliversDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	p := New(ctx, exec.Command("/bin/sh", "-c", "sleep 30")).
		SetGracePeriod(time.Second)
	require.NoError(t, p.Start())

	err := <-p.Wait()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKillTerminatesProcessGroup(t *testing.T) {
	// The sleep runs as a child of the shell, the group kill reaps both
	p := New(context.Background(), exec.Command("/bin/sh", "-c", "sleep 30 & wait"))
	require.NoError(t, p.Start())

	start := time.Now()
	require.NoError(t, p.Kill())

	err := <-p.Wait()
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStuckProcessGetsKilled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// The shell ignores SIGTERM, only the SIGKILL escalation ends it.
	// Main-pid targeting keeps the group kill from reaching the sleep child
	// before the trap is exercised.
	p := New(ctx, exec.Command("/bin/sh", "-c", "trap '' TERM; sleep 30")).
		SetTerminateMainOnly().
		SetGracePeriod(300 * time.Millisecond)
	require.NoError(t, p.Start())

	// Give the shell a moment to install the trap
	time.Sleep(200 * time.Millisecond)
	cancel()

	err := <-p.Wait()
	assert.ErrorIs(t, err, &ProcessStuckError{})
}

func TestStreamsReceiveOutput(t *testing.T) {
	var buf testBuffer

	p := New(context.Background(), exec.Command("/bin/sh", "-c", "echo to-stream")).
		WithStreams(CaptureStreams{StdOUT: &buf})

	require.NoError(t, p.Start())
	require.NoError(t, <-p.Wait())
	assert.Equal(t, "to-stream\n", buf.String())
}

// testBuffer is a tiny synchronized buffer, the process writes from its own
// goroutine
type testBuffer struct {
	data []byte
}

func (b *testBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *testBuffer) String() string {
	return string(b.data)
}
