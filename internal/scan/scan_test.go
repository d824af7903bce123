package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigbench/sigctl/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(true)
	m.Run()
}

const sampleOutput = `wlan0     Scan completed :
          Cell 01 - Address: 00:11:22:33:44:55
                    ESSID:"HomeNet"
                    Quality=42/100  Signal level=42/100
          Cell 02 - Address: 66:77:88:99:AA:BB
                    ESSID:"CampusLab"
                    Quality=77/100  Signal level=77/100
          Cell 03 - Address: CC:DD:EE:FF:00:11
                    ESSID:"Printer"
                    Quality=10/100  Signal level=10/100
`

func TestParseCells(t *testing.T) {
	cells := ParseCells(sampleOutput)
	require.Len(t, cells, 3)

	assert.Equal(t, Cell{ESSID: "HomeNet", Level: 42}, cells[0])
	assert.Equal(t, Cell{ESSID: "CampusLab", Level: 77}, cells[1])
	assert.Equal(t, Cell{ESSID: "Printer", Level: 10}, cells[2])
}

func TestStrongestPicksMaxLevel(t *testing.T) {
	cell, err := Strongest(ParseCells(sampleOutput))
	require.NoError(t, err)

	assert.Equal(t, "CampusLab", cell.ESSID)
	assert.Equal(t, 77, cell.Level)
}

func TestStrongestTieResolvesToFirst(t *testing.T) {
	cells := []Cell{
		{ESSID: "first", Level: 50},
		{ESSID: "second", Level: 50},
		{ESSID: "weak", Level: 1},
	}

	cell, err := Strongest(cells)
	require.NoError(t, err)
	assert.Equal(t, "first", cell.ESSID)
}

func TestStrongestEmptyScan(t *testing.T) {
	_, err := Strongest(nil)
	assert.ErrorIs(t, err, ErrNoNetworks)

	_, err = Strongest(ParseCells("wlan0     No scan results"))
	assert.ErrorIs(t, err, ErrNoNetworks)
}

func TestParseCellsWithoutSignalInfo(t *testing.T) {
	cells := ParseCells(`header
          Cell 01 - Address: 00:11:22:33:44:55
                    ESSID:"NoLevel"
`)
	require.Len(t, cells, 1)
	assert.Equal(t, Cell{ESSID: "NoLevel", Level: 0}, cells[0])
}

func TestParseLevelIgnoresOutOfRange(t *testing.T) {
	assert.Equal(t, 0, parseLevel("Signal level=999/100"))
	assert.Equal(t, 100, parseLevel("Signal level=100/100"))
}
