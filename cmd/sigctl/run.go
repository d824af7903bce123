package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sigbench/sigctl/internal/report"
	"github.com/sigbench/sigctl/internal/supervisor"
	"github.com/sigbench/sigctl/pkg/file"
	"github.com/sigbench/sigctl/pkg/log"
	"github.com/sigbench/sigctl/pkg/usb"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record IQ samples with the USRP capture tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		radioPreflight()

		log.Info("running usrp capture")
		err := controller.sup.StartSingle(cmd.Context(), supervisor.Capture)
		if err == nil {
			log.Info("done sensing medium")
		}

		reportRun(cmd.Context(), "capture", err, true)
		return err
	},
}

var interfereCmd = &cobra.Command{
	Use:   "interfere",
	Short: "Drive the signal generator for the configured duration",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("running interference")
		err := controller.sup.StartSingle(cmd.Context(), supervisor.Controller)
		if err == nil {
			log.Info("done injecting interference")
		}

		reportRun(cmd.Context(), "interfere", err, false)
		return err
	},
}

var captureInterfereCmd = &cobra.Command{
	Use:   "capture-interfere",
	Short: "Record IQ samples while the signal generator injects interference",
	RunE: func(cmd *cobra.Command, args []string) error {
		radioPreflight()

		log.Info("running usrp capture with interference injected")
		err := controller.sup.StartJoint(cmd.Context(), supervisor.Capture, supervisor.Controller)
		if err == nil {
			log.Info("done sensing with added interference")
		}

		reportRun(cmd.Context(), "capture-interfere", err, true)
		return err
	},
}

var captureIperfCmd = &cobra.Command{
	Use:   "capture-iperf",
	Short: "Record IQ samples while iperf generates traffic",
	Long: `Runs the capture job while an iperf server (and, when --client-addr or
the config provides a target, an iperf client) generates network traffic.
The iperf processes are killed as soon as the capture finishes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		radioPreflight()

		log.Info("running usrp capture with iperf traffic")
		err := controller.sup.StartJointWithAux(cmd.Context())
		if err == nil {
			log.Info("done sensing with iperf")
		}

		reportRun(cmd.Context(), "capture-iperf", err, true)
		return err
	},
}

var iperfCmd = &cobra.Command{
	Use:   "iperf",
	Short: "Run the iperf client/server pair until both exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("running iperf")
		err := controller.sup.StartClientServerPair(cmd.Context())
		if err == nil {
			log.Info("done running iperf")
		}

		reportRun(cmd.Context(), "iperf", err, false)
		return err
	},
}

// radioPreflight warns when no capture radio is attached. The launch is not
// blocked, the capture tool reports its own, more specific error.
func radioPreflight() {
	if !controller.conf.Usb.Preflight {
		return
	}

	mgr := usb.NewDeviceManager()
	defer mgr.Shutdown()

	mgr.FindSupportedDevices()
	if !mgr.HasRadio() {
		log.Warn("no usrp radio attached, the capture tool will likely fail")
	}
}

// reportRun pushes the run summary and, for capture runs, the result archive
// to the collection server. Upload problems are logged, never propagated: a
// finished capture stays a finished capture.
func reportRun(ctx context.Context, operation string, runErr error, withArchive bool) {
	if !controller.reporter.Enabled() {
		return
	}

	runID := uuid.NewString()

	status := report.RunStatus{
		RunID:      runID,
		Operation:  operation,
		Mode:       string(controller.sup.Mode()),
		FileName:   controller.sup.FileName(),
		RunTime:    controller.sup.RunTime(),
		StatusTime: time.Now().Unix(),
		Success:    runErr == nil,
	}
	if runErr != nil {
		status.FailureInfo = runErr.Error()
	}

	if err := controller.reporter.PutStatus(ctx, status); err != nil {
		log.Error("unable to put run status on server", zap.Error(err))
	}

	if !withArchive || runErr != nil {
		return
	}

	captureFile := controller.sup.FileName() + ".bin"
	if err := file.Exists(captureFile); err != nil {
		log.Warn("no capture output to upload", zap.String("file", captureFile), zap.Error(err))
		return
	}

	archivePath := filepath.Join(os.TempDir(), "run_"+runID+".zip")
	defer func() {
		_ = os.Remove(archivePath)
	}()

	if err := file.CreateArchive(archivePath, []string{captureFile}); err != nil {
		log.Error("could not archive capture output", zap.Error(err))
		return
	}

	if err := controller.reporter.PostRunData(ctx, runID, archivePath); err != nil {
		log.Error("error uploading run archive to server", zap.Error(err))
	}
}

func init() {
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(interfereCmd)
	rootCmd.AddCommand(captureInterfereCmd)
	rootCmd.AddCommand(captureIperfCmd)
	rootCmd.AddCommand(iperfCmd)
}
