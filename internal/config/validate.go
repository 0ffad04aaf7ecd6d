package config

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/slitos/slit-install/pkg/errs"
)

var (
	usernameRE  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)
	hostLabelRE = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	localeRE    = regexp.MustCompile(`^[a-z]{2}_[A-Z]{2}\.UTF-8$`)
	timezoneRE  = regexp.MustCompile(`^[A-Z][a-zA-Z_]*/[A-Z][a-zA-Z_]*$`)
	ipv4RE      = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)
	swapSizeRE  = regexp.MustCompile(`^\d+[KMG]?$`)
)

var drivePathREs = []*regexp.Regexp{
	regexp.MustCompile(`^/dev/sd[a-z]$`),
	regexp.MustCompile(`^/dev/hd[a-z]$`),
	regexp.MustCompile(`^/dev/nvme\d+n\d+$`),
	regexp.MustCompile(`^/dev/mmcblk\d+$`),
	regexp.MustCompile(`^/dev/loop\d+$`),
	regexp.MustCompile(`^/dev/md\d+$`),
	regexp.MustCompile(`^/dev/dm-\d+$`),
}

// reservedUsernames are account names claimed by the base system or common
// services. Creating the primary user under one of these would collide at
// first boot.
var reservedUsernames = map[string]struct{}{
	"root": {}, "bin": {}, "daemon": {}, "adm": {}, "lp": {}, "sync": {},
	"shutdown": {}, "halt": {}, "mail": {}, "news": {}, "uucp": {},
	"operator": {}, "games": {}, "gopher": {}, "ftp": {}, "nobody": {},
	"systemd-network": {}, "systemd-resolve": {}, "systemd-timesync": {},
	"messagebus": {}, "systemd-coredump": {}, "systemd-oom": {}, "sshd": {},
	"chrony": {}, "postfix": {}, "tcpdump": {}, "tss": {}, "polkitd": {},
	"unbound": {}, "sssd": {}, "cockpit-ws": {}, "cockpit-wsinstance": {},
	"setroubleshoot": {}, "insights": {}, "clevis": {}, "pesign": {},
	"flatpak": {}, "geoclue": {}, "gnome-initial-setup": {}, "saned": {},
	"colord": {}, "avahi": {}, "pulse": {}, "gdm": {},
	"gnome-remote-desktop": {}, "rpc": {}, "gluster": {}, "saslauth": {},
	"apache": {}, "qemu": {}, "kvm": {}, "render": {}, "pipewire": {},
	"rtkit": {}, "test": {}, "guest": {}, "admin": {}, "administrator": {},
	"user": {}, "default": {},
}

// ValidIPv4 accepts dotted-quad host addresses. Reserved first octets
// (0, loopback, multicast and above) are rejected because no installed
// system can use them.
func ValidIPv4(s string) bool {
	m := ipv4RE.FindStringSubmatch(s)
	if m == nil {
		return false
	}

	octets := make([]int, 4)
	for i, part := range m[1:] {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return false
		}
		octets[i] = n
	}

	if octets[0] == 0 || octets[0] == 127 {
		return false
	}
	if octets[0] >= 224 {
		return false
	}
	return true
}

// ValidUsername checks Linux account-name rules and rejects names reserved
// by the base system.
func ValidUsername(username string) bool {
	if len(username) < 1 || len(username) > 32 {
		return false
	}
	if !usernameRE.MatchString(username) {
		return false
	}
	_, reserved := reservedUsernames[strings.ToLower(username)]
	return !reserved
}

// ValidHostname checks RFC-1123 label rules. All-numeric labels are rejected
// to keep hostnames distinguishable from addresses.
func ValidHostname(hostname string) bool {
	if len(hostname) < 1 || len(hostname) > 253 {
		return false
	}
	for _, label := range strings.Split(hostname, ".") {
		if len(label) < 1 || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		if !hostLabelRE.MatchString(label) {
			return false
		}
		if allDigits(label) {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ValidLocale accepts UTF-8 locales of the ll_CC.UTF-8 form.
func ValidLocale(locale string) bool {
	return localeRE.MatchString(locale)
}

// ValidTimezone accepts Area/Location timezone names.
func ValidTimezone(timezone string) bool {
	return timezoneRE.MatchString(timezone)
}

// ValidDrivePath accepts whole-disk device paths of the known naming
// schemes. Partition paths do not match.
func ValidDrivePath(path string) bool {
	if !strings.HasPrefix(path, "/dev/") {
		return false
	}
	for _, re := range drivePathREs {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// ValidSwapSize accepts "auto" or a number with an optional K/M/G unit,
// bounded to sensible swap sizes per unit (1 MiB up to 64 GiB overall).
func ValidSwapSize(size string) bool {
	if strings.EqualFold(size, "auto") {
		return true
	}

	upper := strings.ToUpper(size)
	if !swapSizeRE.MatchString(upper) {
		return false
	}

	numeric := upper
	unit := ""
	if last := upper[len(upper)-1]; last == 'K' || last == 'M' || last == 'G' {
		numeric = upper[:len(upper)-1]
		unit = string(last)
	}

	value, err := strconv.ParseInt(numeric, 10, 64)
	if err != nil {
		return false
	}

	var minSize, maxSize int64
	switch unit {
	case "K":
		minSize, maxSize = 1024, 1024*1024
	case "M":
		minSize, maxSize = 1, 32*1024
	case "G":
		minSize, maxSize = 1, 64
	default:
		minSize, maxSize = 1024*1024, 64*1024*1024*1024
	}
	return value >= minSize && value <= maxSize
}

// Validate checks every field and returns all violations joined together, so
// a caller can surface the complete list in one pass. A nil result means the
// configuration is ready to install.
func (c SystemConfig) Validate() error {
	var issues []error
	add := func(field string, value any, expected string) {
		issues = append(issues, errs.Validation(field, value, expected))
	}

	switch {
	case c.TargetDrive == "":
		add("target_drive", c.TargetDrive, "Valid drive path (e.g., /dev/nvme0n1)")
	case !strings.HasPrefix(c.TargetDrive, "/dev/"):
		add("target_drive", c.TargetDrive, "Path starting with /dev/")
	case !ValidDrivePath(c.TargetDrive):
		add("target_drive", c.TargetDrive, "Known block device name (e.g., /dev/sda, /dev/nvme0n1)")
	}

	switch {
	case c.UserFullname == "":
		add("user_fullname", c.UserFullname, "User's full name")
	case len(c.UserFullname) > 128:
		add("user_fullname", c.UserFullname, "At most 128 characters")
	case !printable(c.UserFullname):
		add("user_fullname", c.UserFullname, "Printable characters only")
	}

	if c.Username == "" {
		add("username", c.Username, "Valid Linux username")
	} else if !ValidUsername(c.Username) {
		add("username", c.Username, "Letters, numbers, underscore, hyphen, starting with letter or underscore, not a reserved name")
	}

	if c.Hostname == "" {
		add("hostname", c.Hostname, "Valid hostname")
	} else if !ValidHostname(c.Hostname) {
		add("hostname", c.Hostname, "Letters, numbers, hyphens, no spaces")
	}

	if !ValidLocale(c.Locale) {
		add("locale", c.Locale, "Format: xx_XX.UTF-8")
	}
	if !ValidTimezone(c.Timezone) {
		add("timezone", c.Timezone, "Format: Area/Location")
	}
	if !ValidSwapSize(c.SwapSize) {
		add("swap_size", c.SwapSize, "auto or a size like 2G, 512M")
	}
	if c.UserPassword != "" && len(c.UserPassword) < 8 {
		add("user_password", "(redacted)", "At least 8 characters")
	}

	issues = append(issues, c.Network.validate()...)

	if len(issues) == 0 {
		return nil
	}
	return errors.Join(issues...)
}

func printable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
