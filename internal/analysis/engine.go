// Package analysis drives the numeric conversion and plotting of captured
// IQ data. The heavy lifting lives in MATLAB scripts, this package only
// models the engine as an optional capability: when no MATLAB installation
// is present every operation degrades to a warning instead of a crash.
package analysis

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/sigbench/sigctl/internal/runner"
	"github.com/sigbench/sigctl/pkg/log"
)

const matlabBinary = "matlab"

// Engine converts captured files and plots the results
type Engine interface {
	// Convert processes the capture file with the given duration
	Convert(ctx context.Context, fileName string, duration float64) error
	// Plot renders the previously converted data
	Plot(ctx context.Context) error
	// Available reports whether a real engine backs this instance
	Available() bool
}

// Detect resolves the engine once. Absence is not an error, the caller gets
// a disabled engine that keeps the tool usable.
func Detect() Engine {
	path, err := exec.LookPath(matlabBinary)
	if err != nil {
		log.Warn("matlab engine could not be found, converter and plotter are disabled")
		return &disabledEngine{}
	}

	log.Info("matlab engine found", zap.String("path", path))
	return &matlabEngine{binary: path}
}

type disabledEngine struct{}

func (e *disabledEngine) Convert(_ context.Context, _ string, _ float64) error {
	log.Warn("nothing converted, is the matlab engine installed?")
	return nil
}

func (e *disabledEngine) Plot(_ context.Context) error {
	log.Warn("nothing plotted, is the matlab engine installed?")
	return nil
}

func (e *disabledEngine) Available() bool {
	return false
}

type matlabEngine struct {
	binary string
}

// run executes one batch statement in a fresh engine process
func (e *matlabEngine) run(ctx context.Context, statement string) error {
	cmd := exec.Command(e.binary, "-batch", statement)
	proc := runner.New(ctx, cmd)

	if err := proc.Start(); err != nil {
		return err
	}

	return <-proc.Wait()
}

func (e *matlabEngine) Convert(ctx context.Context, fileName string, duration float64) error {
	log.Info("running converter", zap.String("file", fileName))

	statement := fmt.Sprintf(
		"fileName='%s.bin'; duration=%s; displayTimingInformation",
		fileName,
		strconv.FormatFloat(duration, 'f', -1, 64),
	)

	if err := e.run(ctx, statement); err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	log.Info("done converting", zap.String("file", fileName))
	return nil
}

func (e *matlabEngine) Plot(ctx context.Context) error {
	log.Info("running plotter")

	if err := e.run(ctx, "Load_and_Eval"); err != nil {
		return fmt.Errorf("plotting failed: %w", err)
	}

	log.Info("done plotting")
	return nil
}

func (e *matlabEngine) Available() bool {
	return true
}
