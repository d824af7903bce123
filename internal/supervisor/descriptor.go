package supervisor

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/sigbench/sigctl/internal/config"
)

// JobDescriptor is one concrete tool invocation, immutable once built.
// No shell interpretation takes place, the args go to the process as-is.
type JobDescriptor struct {
	Kind       JobKind
	Executable string
	Args       []string
}

func (d JobDescriptor) Name() string {
	return string(d.Kind)
}

// MaterializeParams carry the mutable supervisor state the argument lists
// get rebuilt from on every launch.
type MaterializeParams struct {
	FileName   string
	RunTime    float64
	ClientAddr string
}

// DescriptorSet resolves job descriptors for one execution mode. The mode is
// fixed at construction, switching requires a new set.
type DescriptorSet struct {
	mode  config.Mode
	tools config.ToolsConfig
	iperf config.IperfConfig
}

func NewDescriptorSet(conf *config.MainConfig) *DescriptorSet {
	return &DescriptorSet{
		mode:  conf.Client.Mode,
		tools: conf.Tools,
		iperf: conf.Iperf,
	}
}

func (s *DescriptorSet) Mode() config.Mode {
	return s.mode
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

func (s *DescriptorSet) simScript(name string) string {
	return filepath.Join(s.tools.SimulatorDir, name)
}

// Materialize builds the descriptor for the given kind from the current
// parameters. Capture and controller argument lists embed the file name and
// run duration, so they differ between calls without touching the set.
func (s *DescriptorSet) Materialize(kind JobKind, p MaterializeParams) (JobDescriptor, error) {
	if s.mode == config.ModeSimulated {
		return s.materializeSimulated(kind, p)
	}
	return s.materializeReal(kind, p)
}

func (s *DescriptorSet) materializeReal(kind JobKind, p MaterializeParams) (JobDescriptor, error) {
	switch kind {
	case Capture:
		return JobDescriptor{
			Kind:       kind,
			Executable: s.tools.Interpreter,
			Args:       []string{s.tools.CaptureScript, p.FileName, formatSeconds(p.RunTime)},
		}, nil
	case Controller:
		return JobDescriptor{
			Kind:       kind,
			Executable: s.tools.Interpreter,
			Args:       []string{s.tools.ControllerScript, formatSeconds(p.RunTime)},
		}, nil
	case IperfClient:
		return JobDescriptor{
			Kind:       kind,
			Executable: s.tools.IperfBinary,
			Args: []string{
				"-c", p.ClientAddr,
				"-u",
				fmt.Sprintf("-b%dM", s.iperf.RateMbit),
				"-S", s.iperf.Tos,
				fmt.Sprintf("-t%d", s.iperf.Duration),
			},
		}, nil
	case IperfServer:
		return JobDescriptor{
			Kind:       kind,
			Executable: s.tools.IperfBinary,
			Args: []string{
				"-s",
				"-u",
				fmt.Sprintf("-t%d", s.iperf.Duration),
			},
		}, nil
	}

	return JobDescriptor{}, fmt.Errorf("unknown job kind %q", kind)
}

func (s *DescriptorSet) materializeSimulated(kind JobKind, p MaterializeParams) (JobDescriptor, error) {
	switch kind {
	case Capture:
		return JobDescriptor{
			Kind:       kind,
			Executable: s.tools.Interpreter,
			Args:       []string{s.simScript("usrp_sim.py"), p.FileName, formatSeconds(p.RunTime)},
		}, nil
	case Controller:
		return JobDescriptor{
			Kind:       kind,
			Executable: s.tools.Interpreter,
			Args:       []string{s.simScript("sg_sim.py"), formatSeconds(p.RunTime)},
		}, nil
	case IperfClient:
		return JobDescriptor{
			Kind:       kind,
			Executable: s.tools.Interpreter,
			Args:       []string{s.simScript("iperf_sim.py"), p.ClientAddr},
		}, nil
	case IperfServer:
		return JobDescriptor{
			Kind:       kind,
			Executable: s.tools.Interpreter,
			Args:       []string{s.simScript("iperf_server_sim.py")},
		}, nil
	}

	return JobDescriptor{}, fmt.Errorf("unknown job kind %q", kind)
}
