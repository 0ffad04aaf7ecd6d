package model

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Drive describes one whole block device at enumeration time. Records are
// rebuilt on every enumeration; device path is the only key and identity is
// not tracked across calls.
type Drive struct {
	Path       string   `json:"path" yaml:"path"`
	SizeGB     int      `json:"size_gb" yaml:"size_gb"`
	Model      string   `json:"model" yaml:"model"`
	Removable  bool     `json:"removable" yaml:"removable"`
	HasWindows bool     `json:"has_windows" yaml:"has_windows"`
	Partitions []string `json:"partitions,omitempty" yaml:"partitions,omitempty"`
	Health     string   `json:"health,omitempty" yaml:"health,omitempty"`
}

// WindowsDetection is the outcome of layered Windows probing for one drive.
// Confidence only escalates: a filesystem signature alone yields medium, any
// directory or boot-entry signal yields high.
type WindowsDetection struct {
	Found       bool       `json:"found" yaml:"found"`
	Confidence  Confidence `json:"confidence" yaml:"confidence"`
	Methods     []string   `json:"methods" yaml:"methods"`
	Version     string     `json:"version,omitempty" yaml:"version,omitempty"`
	BootEntries []string   `json:"boot_entries,omitempty" yaml:"boot_entries,omitempty"`
}

// EFIBootEntry is one parsed line of the firmware boot manager listing.
type EFIBootEntry struct {
	Number      string `json:"number" yaml:"number"`
	Description string `json:"description" yaml:"description"`
	Active      bool   `json:"active" yaml:"active"`
	Device      string `json:"device,omitempty" yaml:"device,omitempty"`
}
