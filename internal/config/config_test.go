package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigbench/sigctl/pkg/file"
)

func TestLoadAppliesDefaultsOnSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigctl.toml")
	require.NoError(t, file.WriteTo(path, "[client]\nmode = \"simulated\"\n"))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeSimulated, conf.Client.Mode)
	// Unspecified fields keep their defaults
	assert.Equal(t, 0.5, conf.Client.RunTime)
	assert.Equal(t, "iperf", conf.Tools.IperfBinary)
	assert.Equal(t, DefaultIperfDuration, conf.Iperf.Duration)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigctl.toml")
	require.NoError(t, file.WriteTo(path, "[client]\nmode = \"dryrun\"\n"))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "sigctl.toml")

	conf := Defaults()
	conf.Client.Mode = ModeSimulated
	conf.Client.FileName = "experiment7"
	conf.Iperf.ClientAddr = "192.168.0.10"
	conf.Timeouts.SlackSeconds = 2.5

	require.NoError(t, Save(path, &conf))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, conf, *loaded)
}

func TestValidatePath(t *testing.T) {
	assert.Error(t, ValidatePath(""))
	assert.Error(t, ValidatePath(t.TempDir()))

	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, file.WriteTo(path, ""))
	assert.NoError(t, ValidatePath(path))
}
