package hardware

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/slitos/slit-install/internal/exec"
	"github.com/slitos/slit-install/pkg/model"
)

// DetectWindowsBasic reports whether the drive carries Windows, using the
// cheapest probes only: an NTFS filesystem signature, or an EFI boot entry
// that names both Windows and this device. Probe failures count as no.
func (inv *Inventory) DetectWindowsBasic(ctx context.Context, drivePath string) bool {
	if inv.runner.Simulating() {
		return strings.Contains(drivePath, "nvme1n1")
	}

	if inv.hasNTFSPartitions(ctx, drivePath) {
		inv.logger.Info().Str("drive", drivePath).Msg("ntfs partition found")
		return true
	}
	if inv.hasWindowsBootEntry(ctx, drivePath) {
		return true
	}
	return false
}

// DetectWindowsComprehensive gathers every available Windows signal for the
// drive and grades the combined confidence. Signals only ever raise the
// confidence level; a drive with no signals reports not found.
func (inv *Inventory) DetectWindowsComprehensive(ctx context.Context, drivePath string) model.WindowsDetection {
	if inv.runner.Simulating() {
		if strings.Contains(drivePath, "nvme1n1") {
			return model.WindowsDetection{
				Found:       true,
				Confidence:  model.ConfidenceHigh,
				Methods:     []string{"NTFS filesystem", "Windows EFI entries"},
				Version:     "Windows 11",
				BootEntries: []string{"Boot0001: Windows Boot Manager"},
			}
		}
		return model.WindowsDetection{
			Confidence: model.ConfidenceHigh,
			Methods:    []string{"No Windows indicators found"},
		}
	}

	detection := model.WindowsDetection{Confidence: model.ConfidenceLow}

	if inv.hasNTFSPartitions(ctx, drivePath) {
		detection.Methods = append(detection.Methods, "NTFS filesystem")
		detection.Confidence = model.ConfidenceMedium
	}
	if inv.hasWindowsDirectories(drivePath) {
		detection.Methods = append(detection.Methods, "Windows directory structure")
		detection.Confidence = model.ConfidenceHigh
	}

	entries := inv.windowsBootLines(ctx)
	if len(entries) > 0 {
		detection.Methods = append(detection.Methods, "Windows EFI entries")
		detection.Confidence = model.ConfidenceHigh
	}
	detection.BootEntries = entries

	if len(detection.Methods) > 0 {
		detection.Found = true
		detection.Version = inv.windowsVersion(drivePath)
	}
	return detection
}

// hasNTFSPartitions probes partition filesystem types. The glob argument is
// passed to blkid literally, matching its own partition expansion.
func (inv *Inventory) hasNTFSPartitions(ctx context.Context, drivePath string) bool {
	res, _ := inv.runner.Run(ctx, fmt.Sprintf("blkid -o value -s TYPE %s*", drivePath), "probe filesystem types", exec.Options{
		Capture: true,
		Timeout: probeTimeout,
	})
	if !res.Success {
		return false
	}
	return strings.Contains(strings.ToLower(res.Stdout), "ntfs")
}

// hasWindowsDirectories would inspect the on-disk directory layout, which
// needs the partitions mounted. The prober never mounts anything, so this
// signal stays negative.
func (inv *Inventory) hasWindowsDirectories(drivePath string) bool {
	return false
}

// windowsVersion would read version information from the installed system.
// Without mounting, only a generic answer is possible.
func (inv *Inventory) windowsVersion(drivePath string) string {
	return "Windows (version unknown)"
}

// hasWindowsBootEntry reports whether any EFI boot entry mentions Windows and
// references this drive by bare device name.
func (inv *Inventory) hasWindowsBootEntry(ctx context.Context, drivePath string) bool {
	res, _ := inv.runner.Run(ctx, "efibootmgr -v", "read EFI boot entries", exec.Options{
		Capture: true,
		Timeout: probeTimeout,
	})
	if !res.Success {
		return false
	}

	name := strings.TrimPrefix(drivePath, "/dev/")
	for _, line := range strings.Split(res.Stdout, "\n") {
		if !mentionsWindows(line) {
			continue
		}
		if strings.Contains(line, name) {
			return true
		}
	}
	return false
}

// windowsBootLines returns every EFI boot entry line that mentions Windows,
// regardless of which drive it points at.
func (inv *Inventory) windowsBootLines(ctx context.Context) []string {
	var entries []string

	res, _ := inv.runner.Run(ctx, "efibootmgr -v", "read EFI boot entries", exec.Options{
		Capture: true,
		Timeout: probeTimeout,
	})
	if !res.Success {
		return entries
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		if mentionsWindows(line) {
			entries = append(entries, strings.TrimSpace(line))
		}
	}
	return entries
}

func mentionsWindows(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "windows") || strings.Contains(lower, "microsoft")
}

var bootEntryRE = regexp.MustCompile(`^Boot([0-9A-Fa-f]{4})(\*?)\s+(.+)$`)

// ListBootEntries parses the firmware boot entry table. In simulate mode a
// fixed two-entry table is served.
func (inv *Inventory) ListBootEntries(ctx context.Context) []model.EFIBootEntry {
	if inv.runner.Simulating() {
		return []model.EFIBootEntry{
			{Number: "0001", Description: "Windows Boot Manager", Active: true, Device: "HD(1,GPT)/File(\\EFI\\Microsoft\\Boot\\bootmgfw.efi)"},
			{Number: "0002", Description: "Linux Boot Manager", Active: true, Device: "HD(1,GPT)/File(\\EFI\\systemd\\systemd-bootx64.efi)"},
		}
	}

	var entries []model.EFIBootEntry

	res, _ := inv.runner.Run(ctx, "efibootmgr -v", "read EFI boot entries", exec.Options{
		Capture: true,
		Timeout: probeTimeout,
	})
	if !res.Success {
		return entries
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		m := bootEntryRE.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		entry := model.EFIBootEntry{
			Number: m[1],
			Active: m[2] == "*",
		}
		description, device, found := strings.Cut(m[3], "\t")
		entry.Description = strings.TrimSpace(description)
		if found {
			entry.Device = strings.TrimSpace(device)
		}
		entries = append(entries, entry)
	}
	return entries
}
