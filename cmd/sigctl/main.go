package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sigbench/sigctl/internal/analysis"
	"github.com/sigbench/sigctl/internal/config"
	"github.com/sigbench/sigctl/internal/report"
	"github.com/sigbench/sigctl/internal/supervisor"
	"github.com/sigbench/sigctl/pkg/log"
)

// app bundles everything a command needs, assembled once in the root
// PersistentPreRunE after the config is known.
type app struct {
	conf     *config.MainConfig
	sup      *supervisor.Supervisor
	engine   analysis.Engine
	reporter *report.Client
}

var (
	flags = struct {
		configPath string
		debug      bool
		mode       string
		fileName   string
		duration   float64
		clientAddr string
	}{}

	controller *app
)

var rootCmd = &cobra.Command{
	Use:   "sigctl",
	Short: "Supervises the external tools of a signal-capture test stand",
	Long: `sigctl launches and coordinates the processes of a capture experiment:
a USRP IQ-capture script, a signal-generator controller and an iperf
client/server pair, plus optional MATLAB based conversion and plotting.

Jobs run either against the real tools or against local simulator
stand-ins, selected with --mode or the config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Init(flags.debug)

		conf, err := loadConfig()
		if err != nil {
			return err
		}

		applyFlagOverrides(cmd, conf)

		controller = &app{
			conf:     conf,
			sup:      supervisor.New(conf),
			engine:   analysis.Detect(),
			reporter: report.NewClient(conf.Report, flags.debug),
		}

		return nil
	},
}

// loadConfig resolves the config with a fallback chain: an explicitly
// given path has to exist, the default path may be absent.
func loadConfig() (*config.MainConfig, error) {
	path := flags.configPath

	if err := config.ValidatePath(path); err != nil {
		if path != config.DefaultConfigPath {
			log.Error("error while loading configuration", zap.String("path", path), zap.Error(err))
			return nil, err
		}

		log.Debug("no config file found, using defaults", zap.String("path", path))
		defaults := config.Defaults()
		return &defaults, nil
	}

	return config.Load(path)
}

func applyFlagOverrides(cmd *cobra.Command, conf *config.MainConfig) {
	if cmd.Flags().Changed("mode") {
		conf.Client.Mode = config.Mode(flags.mode)
	}
	if cmd.Flags().Changed("file") {
		conf.Client.FileName = flags.fileName
	}
	if cmd.Flags().Changed("duration") {
		conf.Client.RunTime = flags.duration
	}
	if cmd.Flags().Changed("client-addr") {
		conf.Iperf.ClientAddr = flags.clientAddr
	}
	if flags.debug {
		conf.Client.Debug = true
	}
}

func main() {
	defer log.Sync()

	// Make ctrl+c tear the child processes down cleanly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.DefaultConfigPath, "path to the config file")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.mode, "mode", "", "execution mode: simulated or real")
	rootCmd.PersistentFlags().StringVar(&flags.fileName, "file", "", "output/conversion file name")
	rootCmd.PersistentFlags().Float64Var(&flags.duration, "duration", 0, "run duration in seconds")
	rootCmd.PersistentFlags().StringVar(&flags.clientAddr, "client-addr", "", "iperf client target address")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("command failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}
