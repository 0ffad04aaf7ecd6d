package hardware

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/slitos/slit-install/internal/exec"
	"github.com/slitos/slit-install/pkg/model"
)

// fakeRunner serves canned results keyed by command prefix. Commands with no
// canned result fail the way a missing binary would.
type fakeRunner struct {
	simulate  bool
	responses map[string]exec.Result
	calls     []string
}

func (f *fakeRunner) Run(ctx context.Context, command, description string, opts exec.Options) (exec.Result, error) {
	f.calls = append(f.calls, command)
	for prefix, res := range f.responses {
		if strings.HasPrefix(command, prefix) {
			return res, nil
		}
	}
	return exec.Result{ExitCode: -1}, nil
}

func (f *fakeRunner) Simulating() bool { return f.simulate }

func newTestInventory(t *testing.T, runner commandRunner) *Inventory {
	t.Helper()
	inv := NewInventory(zerolog.Nop(), runner)
	inv.sysfsRoot = t.TempDir()
	return inv
}

func markRemovable(t *testing.T, inv *Inventory, name string) {
	t.Helper()
	dir := filepath.Join(inv.sysfsRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "removable"), []byte("1\n"), 0o644); err != nil {
		t.Fatalf("write removable: %v", err)
	}
}

func TestParseSizeToGB(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"500G", 500},
		{"931.5G", 931},
		{"1T", 1000},
		{"1.5T", 1500},
		{"2048M", 2},
		{"256M", 0},
		{"16K", 0},
		{"500", 500},
		{"500g", 500},
		{" 500G ", 500},
		{"", 0},
		{"abc", 0},
		{"4K ssd", 0},
	}
	for _, tt := range tests {
		if got := ParseSizeToGB(tt.in); got != tt.want {
			t.Errorf("ParseSizeToGB(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEnumerateParsesDisksOnly(t *testing.T) {
	lsblk := strings.Join([]string{
		"/dev/nvme0n1 931.5G Samsung SSD 980 PRO 1TB disk",
		"/dev/nvme0n1p1 512M Samsung SSD 980 PRO 1TB part",
		"/dev/sda 223.6G Crucial_CT240M500SSD1 disk",
		"/dev/loop0 4K loop",
		"",
	}, "\n")

	runner := &fakeRunner{responses: map[string]exec.Result{
		"lsblk": {Success: true, Stdout: lsblk},
	}}
	inv := newTestInventory(t, runner)

	drives := inv.Enumerate(context.Background(), false)
	if len(drives) != 2 {
		t.Fatalf("expected 2 drives, got %d: %+v", len(drives), drives)
	}

	first := drives[0]
	if first.Path != "/dev/nvme0n1" {
		t.Errorf("path = %q", first.Path)
	}
	if first.SizeGB != 931 {
		t.Errorf("size = %d, want 931", first.SizeGB)
	}
	if first.Model != "Samsung SSD 980 PRO 1TB" {
		t.Errorf("model = %q", first.Model)
	}
	if first.Health != "unknown" {
		t.Errorf("health = %q, want unknown", first.Health)
	}

	if drives[1].Model != "Crucial_CT240M500SSD1" {
		t.Errorf("single-word model = %q", drives[1].Model)
	}
}

func TestEnumerateSkipsRemovableByDefault(t *testing.T) {
	lsblk := strings.Join([]string{
		"/dev/sda 223.6G Crucial_CT240M500SSD1 disk",
		"/dev/sdb 14.3G Flash Drive disk",
	}, "\n")

	runner := &fakeRunner{responses: map[string]exec.Result{
		"lsblk": {Success: true, Stdout: lsblk},
	}}
	inv := newTestInventory(t, runner)
	markRemovable(t, inv, "sdb")

	drives := inv.Enumerate(context.Background(), false)
	if len(drives) != 1 || drives[0].Path != "/dev/sda" {
		t.Fatalf("expected only /dev/sda, got %+v", drives)
	}

	all := inv.Enumerate(context.Background(), true)
	if len(all) != 2 {
		t.Fatalf("expected 2 drives with removable included, got %+v", all)
	}
	flash := DriveByPath(all, "/dev/sdb")
	if flash == nil || !flash.Removable {
		t.Fatalf("expected /dev/sdb flagged removable, got %+v", flash)
	}
}

func TestEnumerateSurvivesListingFailure(t *testing.T) {
	runner := &fakeRunner{responses: map[string]exec.Result{
		"lsblk": {ExitCode: 1, Stderr: "lsblk: cannot access /sys"},
	}}
	inv := newTestInventory(t, runner)

	drives := inv.Enumerate(context.Background(), false)
	if len(drives) != 0 {
		t.Fatalf("expected no drives on listing failure, got %+v", drives)
	}
}

func TestEnumerateSimulated(t *testing.T) {
	inv := newTestInventory(t, &fakeRunner{simulate: true})

	drives := inv.Enumerate(context.Background(), false)
	if len(drives) != 3 {
		t.Fatalf("expected 3 simulated drives, got %d", len(drives))
	}

	windows := DriveByPath(drives, "/dev/nvme1n1")
	if windows == nil || !windows.HasWindows {
		t.Fatalf("expected simulated /dev/nvme1n1 to carry Windows, got %+v", windows)
	}
	clean := DriveByPath(drives, "/dev/nvme0n1")
	if clean == nil || clean.HasWindows {
		t.Fatalf("expected simulated /dev/nvme0n1 to be clean, got %+v", clean)
	}
}

func TestDetectWindowsBasic(t *testing.T) {
	tests := []struct {
		name      string
		responses map[string]exec.Result
		drive     string
		want      bool
	}{
		{
			name: "ntfs signature",
			responses: map[string]exec.Result{
				"blkid": {Success: true, Stdout: "vfat\nntfs\next4\n"},
			},
			drive: "/dev/sda",
			want:  true,
		},
		{
			name: "boot entry referencing drive",
			responses: map[string]exec.Result{
				"blkid":      {Success: true, Stdout: "ext4\n"},
				"efibootmgr": {Success: true, Stdout: "Boot0001* Windows Boot Manager on nvme0n1\n"},
			},
			drive: "/dev/nvme0n1",
			want:  true,
		},
		{
			name: "boot entry for another drive",
			responses: map[string]exec.Result{
				"blkid":      {Success: true, Stdout: "ext4\n"},
				"efibootmgr": {Success: true, Stdout: "Boot0001* Windows Boot Manager on nvme1n1\n"},
			},
			drive: "/dev/nvme0n1",
			want:  false,
		},
		{
			name:      "all probes failing",
			responses: map[string]exec.Result{},
			drive:     "/dev/sda",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newTestInventory(t, &fakeRunner{responses: tt.responses})
			if got := inv.DetectWindowsBasic(context.Background(), tt.drive); got != tt.want {
				t.Errorf("DetectWindowsBasic(%s) = %v, want %v", tt.drive, got, tt.want)
			}
		})
	}
}

func TestDetectWindowsComprehensiveConfidence(t *testing.T) {
	t.Run("no signals", func(t *testing.T) {
		inv := newTestInventory(t, &fakeRunner{})
		det := inv.DetectWindowsComprehensive(context.Background(), "/dev/sda")
		if det.Found {
			t.Errorf("expected not found, got %+v", det)
		}
		if det.Confidence != model.ConfidenceLow {
			t.Errorf("confidence = %q, want low", det.Confidence)
		}
		if det.Version != "" {
			t.Errorf("version = %q, want empty", det.Version)
		}
	})

	t.Run("ntfs only", func(t *testing.T) {
		inv := newTestInventory(t, &fakeRunner{responses: map[string]exec.Result{
			"blkid": {Success: true, Stdout: "ntfs\n"},
		}})
		det := inv.DetectWindowsComprehensive(context.Background(), "/dev/sda")
		if !det.Found {
			t.Fatalf("expected found, got %+v", det)
		}
		if det.Confidence != model.ConfidenceMedium {
			t.Errorf("confidence = %q, want medium", det.Confidence)
		}
		if len(det.Methods) != 1 || det.Methods[0] != "NTFS filesystem" {
			t.Errorf("methods = %v", det.Methods)
		}
		if det.Version != "Windows (version unknown)" {
			t.Errorf("version = %q", det.Version)
		}
	})

	t.Run("boot entries without ntfs", func(t *testing.T) {
		inv := newTestInventory(t, &fakeRunner{responses: map[string]exec.Result{
			"blkid":      {Success: true, Stdout: "ext4\n"},
			"efibootmgr": {Success: true, Stdout: "Boot0001* Windows Boot Manager\tHD(1,GPT)\n"},
		}})
		det := inv.DetectWindowsComprehensive(context.Background(), "/dev/sda")
		if !det.Found {
			t.Fatalf("expected found, got %+v", det)
		}
		if det.Confidence != model.ConfidenceHigh {
			t.Errorf("confidence = %q, want high without a filesystem signal", det.Confidence)
		}
	})

	t.Run("ntfs and boot entries", func(t *testing.T) {
		inv := newTestInventory(t, &fakeRunner{responses: map[string]exec.Result{
			"blkid":      {Success: true, Stdout: "ntfs\n"},
			"efibootmgr": {Success: true, Stdout: "Boot0001* Windows Boot Manager\tHD(1,GPT)\n"},
		}})
		det := inv.DetectWindowsComprehensive(context.Background(), "/dev/sda")
		if det.Confidence != model.ConfidenceHigh {
			t.Errorf("confidence = %q, want high", det.Confidence)
		}
		if len(det.Methods) != 2 {
			t.Errorf("methods = %v", det.Methods)
		}
		if len(det.BootEntries) != 1 {
			t.Errorf("boot entries = %v", det.BootEntries)
		}
	})

	t.Run("simulated windows drive", func(t *testing.T) {
		inv := newTestInventory(t, &fakeRunner{simulate: true})
		det := inv.DetectWindowsComprehensive(context.Background(), "/dev/nvme1n1")
		if !det.Found || det.Confidence != model.ConfidenceHigh {
			t.Fatalf("unexpected detection: %+v", det)
		}
		if det.Version != "Windows 11" {
			t.Errorf("version = %q", det.Version)
		}
	})

	t.Run("simulated clean drive", func(t *testing.T) {
		inv := newTestInventory(t, &fakeRunner{simulate: true})
		det := inv.DetectWindowsComprehensive(context.Background(), "/dev/nvme0n1")
		if det.Found {
			t.Fatalf("unexpected detection: %+v", det)
		}
		if det.Confidence != model.ConfidenceHigh {
			t.Errorf("confidence = %q, want high", det.Confidence)
		}
	})
}

func TestFilterSafe(t *testing.T) {
	drives := []model.Drive{
		{Path: "/dev/sda", SizeGB: 500},
		{Path: "/dev/sdb", SizeGB: 16, Removable: true},
		{Path: "/dev/sdc", SizeGB: 10},
		{Path: "/dev/sdd", SizeGB: 20},
		{Path: "/dev/nvme0n1", SizeGB: 1000, HasWindows: true},
	}

	safe := FilterSafe(drives, false)
	if len(safe) != 2 {
		t.Fatalf("expected 2 safe drives, got %+v", safe)
	}
	if safe[0].Path != "/dev/sda" || safe[1].Path != "/dev/sdd" {
		t.Errorf("unexpected safe set: %+v", safe)
	}

	withWindows := FilterSafe(drives, true)
	if len(withWindows) != 3 {
		t.Fatalf("expected 3 drives with Windows included, got %+v", withWindows)
	}
	if DriveByPath(withWindows, "/dev/nvme0n1") == nil {
		t.Errorf("expected Windows drive in opt-in set")
	}
}

func TestIsSuitable(t *testing.T) {
	if IsSuitable(model.Drive{Path: "/dev/sdb", SizeGB: 64, Removable: true}) {
		t.Error("removable drive should not be suitable")
	}
	if IsSuitable(model.Drive{Path: "/dev/sdc", SizeGB: 19}) {
		t.Error("undersized drive should not be suitable")
	}
	if !IsSuitable(model.Drive{Path: "/dev/sda", SizeGB: 20}) {
		t.Error("20GB fixed drive should be suitable")
	}
	if !IsSuitable(model.Drive{Path: "/dev/nvme0n1", SizeGB: 500, HasWindows: true}) {
		t.Error("Windows presence alone should not disqualify a drive")
	}
}

func TestDriveByPath(t *testing.T) {
	drives := []model.Drive{
		{Path: "/dev/sda"},
		{Path: "/dev/sdb"},
	}
	if d := DriveByPath(drives, "/dev/sdb"); d == nil || d.Path != "/dev/sdb" {
		t.Errorf("DriveByPath(/dev/sdb) = %+v", d)
	}
	if d := DriveByPath(drives, "/dev/sdz"); d != nil {
		t.Errorf("expected nil for unknown path, got %+v", d)
	}
}

func TestListBootEntries(t *testing.T) {
	stdout := strings.Join([]string{
		"BootCurrent: 0001",
		"Timeout: 1 seconds",
		"BootOrder: 0001,0002",
		"Boot0001* Windows Boot Manager\tHD(1,GPT,aabb)/File(\\EFI\\Microsoft\\Boot\\bootmgfw.efi)",
		"Boot0002  Fallback Shell",
	}, "\n")

	inv := newTestInventory(t, &fakeRunner{responses: map[string]exec.Result{
		"efibootmgr": {Success: true, Stdout: stdout},
	}})

	entries := inv.ListBootEntries(context.Background())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}

	first := entries[0]
	if first.Number != "0001" || !first.Active {
		t.Errorf("first entry = %+v", first)
	}
	if first.Description != "Windows Boot Manager" {
		t.Errorf("description = %q", first.Description)
	}
	if !strings.Contains(first.Device, "bootmgfw.efi") {
		t.Errorf("device = %q", first.Device)
	}

	second := entries[1]
	if second.Active {
		t.Errorf("expected inactive second entry, got %+v", second)
	}
	if second.Device != "" {
		t.Errorf("expected empty device, got %q", second.Device)
	}
}
