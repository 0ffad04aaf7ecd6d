package sysinfo

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Minimums for an installation to proceed.
const (
	MinMemoryGB = 4
	MinCPUs     = 2
)

var (
	virtualMemoryFn = mem.VirtualMemory
	cpuCountsFn     = cpu.Counts
	cpuInfoFn       = cpu.Info
	diskUsageFn     = disk.Usage
	hostInfoFn      = host.Info
	efiFirmwarePath = "/sys/firmware/efi"
)

// Requirement is one checked minimum with the observed value. A probe that
// fails leaves Current as "unknown" and the requirement unmet, since the
// minimum cannot be confirmed.
type Requirement struct {
	Name     string `json:"name"`
	Current  string `json:"current"`
	Required string `json:"required"`
	OK       bool   `json:"ok"`
}

// Facts are the host details logged at the start of a run.
type Facts struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform"`
	KernelVersion string  `json:"kernel_version"`
	CPUModel      string  `json:"cpu_model"`
	CPUCount      int     `json:"cpu_count"`
	MemoryGB      float64 `json:"memory_gb"`
	RootFreeGB    float64 `json:"root_free_gb"`
	UEFI          bool    `json:"uefi"`
}

// BootedUEFI reports whether the running system booted through UEFI firmware.
func BootedUEFI() bool {
	_, err := os.Stat(efiFirmwarePath)
	return err == nil
}

// Check evaluates every installation requirement against the running system.
func Check() []Requirement {
	reqs := make([]Requirement, 0, 3)

	memReq := Requirement{Name: "memory", Current: "unknown", Required: fmt.Sprintf("%d GB", MinMemoryGB)}
	if vm, err := virtualMemoryFn(); err == nil {
		gb := float64(vm.Total) / (1 << 30)
		memReq.Current = fmt.Sprintf("%.1f GB", gb)
		memReq.OK = gb >= MinMemoryGB
	}
	reqs = append(reqs, memReq)

	cpuReq := Requirement{Name: "cpu cores", Current: "unknown", Required: strconv.Itoa(MinCPUs)}
	if count, err := cpuCountsFn(true); err == nil {
		cpuReq.Current = strconv.Itoa(count)
		cpuReq.OK = count >= MinCPUs
	}
	reqs = append(reqs, cpuReq)

	uefiReq := Requirement{Name: "uefi firmware", Current: "absent", Required: "present"}
	if BootedUEFI() {
		uefiReq.Current = "present"
		uefiReq.OK = true
	}
	reqs = append(reqs, uefiReq)

	return reqs
}

// Unmet returns the requirements that did not pass.
func Unmet(reqs []Requirement) []Requirement {
	var failed []Requirement
	for _, r := range reqs {
		if !r.OK {
			failed = append(failed, r)
		}
	}
	return failed
}

// Gather collects host facts on a best-effort basis: probes that fail leave
// their fields zero.
func Gather(logger zerolog.Logger) Facts {
	facts := Facts{UEFI: BootedUEFI()}

	if info, err := hostInfoFn(); err == nil {
		facts.Hostname = info.Hostname
		facts.OS = info.OS
		facts.Platform = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
		facts.KernelVersion = info.KernelVersion
	}
	if infos, err := cpuInfoFn(); err == nil && len(infos) > 0 {
		facts.CPUModel = infos[0].ModelName
	}
	if count, err := cpuCountsFn(true); err == nil {
		facts.CPUCount = count
	}
	if vm, err := virtualMemoryFn(); err == nil {
		facts.MemoryGB = float64(vm.Total) / (1 << 30)
	}
	if usage, err := diskUsageFn("/"); err == nil {
		facts.RootFreeGB = float64(usage.Free) / (1 << 30)
	}

	logger.Debug().
		Str("hostname", facts.Hostname).
		Str("platform", facts.Platform).
		Int("cpus", facts.CPUCount).
		Float64("memory_gb", facts.MemoryGB).
		Bool("uefi", facts.UEFI).
		Msg("gathered host facts")

	return facts
}
