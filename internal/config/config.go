package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/sigbench/sigctl/pkg/file"
)

const (
	ProductName       = "sigctl"
	DefaultConfigPath = "config/" + ProductName + ".toml"

	// Matches the effectively unbounded run time the iperf jobs request
	DefaultIperfDuration int64 = 10000000000
)

// Mode selects between the real tool invocations and the local stand-ins
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeReal      Mode = "real"
)

func (m Mode) Valid() bool {
	return m == ModeSimulated || m == ModeReal
}

type ClientConfig struct {
	Mode     Mode    `toml:"mode"`
	RunTime  float64 `toml:"run_time_seconds"`
	FileName string  `toml:"file_name"`
	Debug    bool    `toml:"debug"`
}

type ToolsConfig struct {
	Interpreter      string `toml:"interpreter"`
	CaptureScript    string `toml:"capture_script"`
	ControllerScript string `toml:"controller_script"`
	IperfBinary      string `toml:"iperf_binary"`

	// Directory holding the simulated stand-in scripts
	SimulatorDir string `toml:"simulator_dir"`
}

type IperfConfig struct {
	// The client job is only launched when an address is configured
	ClientAddr string `toml:"client_addr,omitempty"`
	RateMbit   int64  `toml:"rate_mbit"`
	Tos        string `toml:"tos"`
	Duration   int64  `toml:"duration_seconds"`
}

type TimeoutsConfig struct {
	// Extra seconds a job may run past its requested duration before it is
	// considered timed out, 0 disables the bound
	SlackSeconds float64 `toml:"slack_seconds"`
	GraceSeconds float64 `toml:"grace_seconds"`
}

func (t TimeoutsConfig) Slack() time.Duration {
	return time.Duration(t.SlackSeconds * float64(time.Second))
}

func (t TimeoutsConfig) Grace() time.Duration {
	return time.Duration(t.GraceSeconds * float64(time.Second))
}

type ReportConfig struct {
	// Uploads are disabled while the url is empty
	Url           string `toml:"url,omitempty"`
	Username      string `toml:"username,omitempty"`
	Password      string `toml:"password,omitempty"`
	SensorName    string `toml:"sensor_name,omitempty"`
	AllowInsecure bool   `toml:"allow_insecure,omitempty"`
}

type UsbConfig struct {
	Preflight bool `toml:"preflight,omitempty"`
}

type MainConfig struct {
	Client   ClientConfig   `toml:"client"`
	Tools    ToolsConfig    `toml:"tools"`
	Iperf    IperfConfig    `toml:"iperf"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Report   ReportConfig   `toml:"report,omitempty"`
	Usb      UsbConfig      `toml:"usb,omitempty"`
}

func Defaults() MainConfig {
	return MainConfig{
		Client: ClientConfig{
			Mode:    ModeReal,
			RunTime: 0.5,
		},
		Tools: ToolsConfig{
			Interpreter:      "python3",
			CaptureScript:    "utils/writeIQ.py",
			ControllerScript: "utils/ramp_control.py",
			IperfBinary:      "iperf",
			SimulatorDir:     "tests",
		},
		Iperf: IperfConfig{
			RateMbit: 100,
			Tos:      "0x00",
			Duration: DefaultIperfDuration,
		},
		Timeouts: TimeoutsConfig{
			SlackSeconds: 0,
			GraceSeconds: 5,
		},
	}
}

// ValidatePath checks that the given path points to a readable file
func ValidatePath(path string) error {
	if len(path) == 0 {
		return fmt.Errorf("no config path given")
	}
	return file.Exists(path)
}

// Load decodes the config file on top of the defaults, so the user only has
// to specify the fields they care about. No field validation takes place
// here, the code using a field is required to check it.
func Load(path string) (*MainConfig, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	conf := Defaults()
	if err = toml.Unmarshal(contents, &conf); err != nil {
		return nil, err
	}

	if !conf.Client.Mode.Valid() {
		return nil, fmt.Errorf("invalid mode %q, want %q or %q", conf.Client.Mode, ModeSimulated, ModeReal)
	}

	return &conf, nil
}

// Save writes the config to the given path, creating parent directories
func Save(path string, conf *MainConfig) error {
	out, err := toml.Marshal(conf)
	if err != nil {
		return err
	}

	return file.WriteTo(path, string(out))
}
