package hardware

import "github.com/slitos/slit-install/pkg/model"

// MinInstallSizeGB is the smallest drive the installer will target.
const MinInstallSizeGB = 20

// FilterSafe returns the drives that are acceptable installation targets:
// fixed disks of at least MinInstallSizeGB, with Windows-bearing drives held
// back unless the caller opts in.
func FilterSafe(drives []model.Drive, includeWindows bool) []model.Drive {
	var safe []model.Drive
	for _, drive := range drives {
		if drive.Removable {
			continue
		}
		if drive.SizeGB < MinInstallSizeGB {
			continue
		}
		if drive.HasWindows && !includeWindows {
			continue
		}
		safe = append(safe, drive)
	}
	return safe
}

// IsSuitable reports whether a single drive meets the fixed-disk and
// minimum-size requirements. Windows presence is not considered here; callers
// confirm that separately.
func IsSuitable(drive model.Drive) bool {
	if drive.Removable {
		return false
	}
	if drive.SizeGB < MinInstallSizeGB {
		return false
	}
	return true
}

// DriveByPath finds a drive by its device path, or nil.
func DriveByPath(drives []model.Drive, path string) *model.Drive {
	for i := range drives {
		if drives[i].Path == path {
			return &drives[i]
		}
	}
	return nil
}
