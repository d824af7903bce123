// Package scan picks the strongest Wi-Fi network from iwlist output.
package scan

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sigbench/sigctl/pkg/log"
)

// ErrNoNetworks No cells were discovered during the scan
var ErrNoNetworks = errors.New("no networks found")

var (
	levelRegex = regexp.MustCompile(`Signal level=([0-9]{1,3})/100`)
	essidRegex = regexp.MustCompile(`ESSID:"(.*)"`)
)

// Cell is one network block of the scan output
type Cell struct {
	ESSID string
	// Signal level in the 0-100 scale iwlist reports
	Level int
}

func (c Cell) String() string {
	return c.ESSID + ", " + strconv.Itoa(c.Level)
}

func parseLevel(block string) int {
	m := levelRegex.FindStringSubmatch(block)
	if m == nil {
		return 0
	}

	level, err := strconv.Atoi(m[1])
	if err != nil || level > 100 {
		return 0
	}
	return level
}

func parseESSID(block string) string {
	m := essidRegex.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseCells splits the scan output into its "Cell" blocks. The text before
// the first block is the command header and gets dropped.
func ParseCells(output string) []Cell {
	blocks := strings.Split(output, "Cell")
	if len(blocks) < 2 {
		return nil
	}

	cells := make([]Cell, 0, len(blocks)-1)
	for _, block := range blocks[1:] {
		cells = append(cells, Cell{
			ESSID: parseESSID(block),
			Level: parseLevel(block),
		})
	}
	return cells
}

// Strongest returns the cell with the strictly maximal signal level.
// Ties resolve to the first encountered cell of that level.
func Strongest(cells []Cell) (Cell, error) {
	if len(cells) == 0 {
		return Cell{}, ErrNoNetworks
	}

	best := 0
	for i, c := range cells {
		if c.Level > cells[best].Level {
			best = i
		}
	}
	return cells[best], nil
}

// Run scans on the given device and returns the ESSID of the strongest cell.
func Run(ctx context.Context, device string) (string, error) {
	out, err := exec.CommandContext(ctx, "iwlist", device, "scan").Output()
	if err != nil {
		log.Error("iwlist scan failed", zap.String("device", device), zap.Error(err))
		return "", err
	}

	cell, err := Strongest(ParseCells(string(out)))
	if err != nil {
		return "", err
	}

	log.Info("strongest network found", zap.String("essid", cell.ESSID), zap.Int("level", cell.Level))
	return cell.ESSID, nil
}
