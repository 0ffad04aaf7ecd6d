package hardware

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slitos/slit-install/internal/exec"
	"github.com/slitos/slit-install/pkg/model"
)

// commandRunner is the slice of the executor the inventory needs. Probes run
// with bounded timeouts and never fail fast: a failed probe is a negative
// signal, not an error.
type commandRunner interface {
	Run(ctx context.Context, command, description string, opts exec.Options) (exec.Result, error)
	Simulating() bool
}

const (
	enumerateTimeout = 10 * time.Second
	probeTimeout     = 5 * time.Second
)

// Inventory enumerates whole-disk block devices and probes them for foreign
// operating systems.
type Inventory struct {
	runner    commandRunner
	logger    zerolog.Logger
	sysfsRoot string
}

func NewInventory(logger zerolog.Logger, runner commandRunner) *Inventory {
	return &Inventory{
		runner:    runner,
		logger:    logger,
		sysfsRoot: "/sys/class/block",
	}
}

// Enumerate lists whole disks with size, model, removability, and a Windows
// flag. Removable devices are skipped unless requested. The result is always
// best effort: listing failures return what was gathered so far.
func (inv *Inventory) Enumerate(ctx context.Context, includeRemovable bool) []model.Drive {
	inv.logger.Info().Msg("enumerating storage drives")

	if inv.runner.Simulating() {
		return sampleDrives()
	}

	var drives []model.Drive

	res, _ := inv.runner.Run(ctx, "lsblk -dpno NAME,SIZE,MODEL,TYPE", "list block devices", exec.Options{
		Capture: true,
		Timeout: enumerateTimeout,
	})
	if !res.Success {
		inv.logger.Error().Str("stderr", res.Stderr).Msg("lsblk failed")
		return drives
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}

		path := parts[0]
		sizeStr := parts[1]
		deviceType := parts[len(parts)-1]
		deviceModel := strings.Join(parts[2:len(parts)-1], " ")

		if deviceType != "disk" {
			continue
		}

		removable := inv.removable(path)
		if removable && !includeRemovable {
			continue
		}

		drive := model.Drive{
			Path:      path,
			SizeGB:    ParseSizeToGB(sizeStr),
			Model:     deviceModel,
			Removable: removable,
			Health:    "unknown",
		}
		drive.HasWindows = inv.DetectWindowsBasic(ctx, drive.Path)

		drives = append(drives, drive)
	}

	inv.logger.Info().Int("count", len(drives)).Msg("drive enumeration complete")
	return drives
}

// removable reads the per-device kernel attribute. Any read problem counts as
// not removable.
func (inv *Inventory) removable(devicePath string) bool {
	name := strings.TrimPrefix(devicePath, "/dev/")
	raw, err := os.ReadFile(filepath.Join(inv.sysfsRoot, name, "removable"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(raw)) == "1"
}

var sizeRE = regexp.MustCompile(`^([\d.]+)([KMGT]?)$`)

// ParseSizeToGB converts an lsblk size string to whole gigabytes, truncating
// toward zero. A bare number is taken as already being in gigabytes.
func ParseSizeToGB(s string) int {
	m := sizeRE.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	number, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}

	multiplier := 1.0
	switch m[2] {
	case "K":
		multiplier = 1e-6
	case "M":
		multiplier = 1e-3
	case "G":
		multiplier = 1
	case "T":
		multiplier = 1000
	}
	return int(number * multiplier)
}

// sampleDrives is the fixed inventory served in simulate mode, covering the
// interesting cases: a plain SSD, a Windows-bearing drive, and a small disk.
func sampleDrives() []model.Drive {
	return []model.Drive{
		{
			Path:   "/dev/nvme0n1",
			SizeGB: 500,
			Model:  "Samsung SSD 980 500GB",
			Health: "unknown",
		},
		{
			Path:       "/dev/nvme1n1",
			SizeGB:     1000,
			Model:      "WD Black SN750 1TB",
			HasWindows: true,
			Health:     "unknown",
		},
		{
			Path:   "/dev/sda",
			SizeGB: 250,
			Model:  "Crucial MX250 250GB",
			Health: "unknown",
		},
	}
}
