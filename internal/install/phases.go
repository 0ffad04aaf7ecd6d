package install

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slitos/slit-install/internal/config"
	"github.com/slitos/slit-install/internal/exec"
	"github.com/slitos/slit-install/internal/sysinfo"
	"github.com/slitos/slit-install/pkg/errs"
)

// InstallRoot is where the target filesystem is assembled during a run.
const InstallRoot = "/target"

// requiredPackages must be present in the live environment before any
// destructive work starts.
var requiredPackages = []string{"parted", "gdisk", "dosfstools", "e2fsprogs", "zfsutils-linux"}

var (
	checkRequirementsFn = sysinfo.Check
	gatherFactsFn       = sysinfo.Gather
)

// commandRunner is the executor surface the phases need.
type commandRunner interface {
	Run(ctx context.Context, command, description string, opts exec.Options) (exec.Result, error)
	Simulating() bool
}

// Phase is one stage of the installation. Implementations early-abort on the
// first failed step and report the failure as an error.
type Phase interface {
	Execute(ctx context.Context) error
}

type namedPhase struct {
	name  string
	desc  string
	phase Phase
}

type phaseDeps struct {
	cfg    config.SystemConfig
	runner commandRunner
	logger zerolog.Logger
	root   string
}

// buildPhases assembles the fixed installation sequence. The order is part of
// the contract: later phases assume the filesystems the earlier ones created
// are mounted.
func buildPhases(deps phaseDeps) []namedPhase {
	return []namedPhase{
		{name: "preparation", desc: "System checks and required packages", phase: preparationPhase{deps}},
		{name: "partitioning", desc: "Partition table, ESP, root filesystem", phase: partitioningPhase{deps}},
		{name: "system installation", desc: "Mount target, system files, swap", phase: systemInstallationPhase{deps}},
		{name: "bootloader configuration", desc: "Chroot setup and GRUB install", phase: bootloaderPhase{deps}},
		{name: "system configuration", desc: "Locale, network, user account", phase: systemConfigurationPhase{deps}},
	}
}

// partitionPath returns the device node of the n-th partition, following the
// kernel convention: device names ending in a digit take a "p" separator.
func partitionPath(drive string, n int) string {
	if drive != "" && drive[len(drive)-1] >= '0' && drive[len(drive)-1] <= '9' {
		return fmt.Sprintf("%sp%d", drive, n)
	}
	return fmt.Sprintf("%s%d", drive, n)
}

type preparationPhase struct{ phaseDeps }

func (p preparationPhase) Execute(ctx context.Context) error {
	if err := p.checkRequirements(); err != nil {
		return err
	}
	if err := p.checkNetwork(ctx); err != nil {
		return err
	}
	return p.installPackages(ctx)
}

func (p preparationPhase) checkRequirements() error {
	facts := gatherFactsFn(p.logger)
	p.logger.Info().
		Str("platform", facts.Platform).
		Str("cpu", facts.CPUModel).
		Msg("checking system requirements")

	unmet := sysinfo.Unmet(checkRequirementsFn())
	if len(unmet) == 0 {
		return nil
	}

	parts := make([]string, 0, len(unmet))
	for _, r := range unmet {
		parts = append(parts, fmt.Sprintf("%s is %s (need %s)", r.Name, r.Current, r.Required))
	}
	detail := strings.Join(parts, "; ")

	if p.runner.Simulating() {
		p.logger.Warn().Str("unmet", detail).Msg("[DRY RUN] requirements not met, continuing")
		return nil
	}
	return errs.Newf(errs.CodeRequirements, "system requirements not met: %s", detail).
		WithDetail("unmet", detail)
}

func (p preparationPhase) checkNetwork(ctx context.Context) error {
	p.logger.Info().Msg("checking network connectivity")
	_, err := p.runner.Run(ctx, "ping -c 1 8.8.8.8", "Testing network connectivity", exec.Options{
		Capture:  true,
		FailFast: true,
	})
	return err
}

func (p preparationPhase) installPackages(ctx context.Context) error {
	p.logger.Info().Strs("packages", requiredPackages).Msg("installing required packages")

	if _, err := p.runner.Run(ctx, "apt-get -qq update", "Updating package database", exec.Options{
		Capture:  true,
		FailFast: true,
	}); err != nil {
		return err
	}

	cmd := "apt-get -qq install -y " + strings.Join(requiredPackages, " ")
	_, err := p.runner.Run(ctx, cmd, "Installing required packages", exec.Options{
		Capture:  true,
		FailFast: true,
	})
	return err
}

type partitioningPhase struct{ phaseDeps }

func (p partitioningPhase) Execute(ctx context.Context) error {
	drive := p.cfg.TargetDrive

	if err := p.createPartitionTable(ctx, drive); err != nil {
		return err
	}
	if err := p.createPartitions(ctx, drive); err != nil {
		return err
	}
	return p.formatPartitions(ctx, drive)
}

func (p partitioningPhase) createPartitionTable(ctx context.Context, drive string) error {
	p.logger.Info().Str("drive", drive).Msg("creating GPT partition table")

	// Best effort: the partitions may not exist or may not be mounted.
	for n := 1; n <= 2; n++ {
		_, _ = p.runner.Run(ctx, "umount "+partitionPath(drive, n), "Unmounting existing partition", exec.Options{
			Capture: true,
		})
	}

	_, err := p.runner.Run(ctx, fmt.Sprintf("parted -s %s mklabel gpt", drive), "Creating GPT partition table", exec.Options{
		Capture:  true,
		FailFast: true,
	})
	return err
}

func (p partitioningPhase) createPartitions(ctx context.Context, drive string) error {
	p.logger.Info().Msg("creating partitions")

	steps := []struct {
		command string
		desc    string
	}{
		{fmt.Sprintf("parted -s %s mkpart primary fat32 1MiB 513MiB", drive), "Creating EFI system partition"},
		{fmt.Sprintf("parted -s %s set 1 esp on", drive), "Setting EFI system partition flag"},
		{fmt.Sprintf("parted -s %s mkpart primary ext4 513MiB 100%%", drive), "Creating root partition"},
	}
	for _, s := range steps {
		if _, err := p.runner.Run(ctx, s.command, s.desc, exec.Options{Capture: true, FailFast: true}); err != nil {
			return err
		}
	}
	return nil
}

func (p partitioningPhase) formatPartitions(ctx context.Context, drive string) error {
	p.logger.Info().Msg("formatting partitions")

	steps := []struct {
		command string
		desc    string
	}{
		{"partprobe " + drive, "Refreshing partition table"},
		{fmt.Sprintf("mkfs.fat -F32 -n EFI %s", partitionPath(drive, 1)), "Formatting EFI partition"},
		{fmt.Sprintf("mkfs.ext4 -F -L ROOT %s", partitionPath(drive, 2)), "Formatting root partition"},
	}
	for _, s := range steps {
		if _, err := p.runner.Run(ctx, s.command, s.desc, exec.Options{Capture: true, FailFast: true}); err != nil {
			return err
		}
	}
	return nil
}

type systemInstallationPhase struct{ phaseDeps }

func (p systemInstallationPhase) Execute(ctx context.Context) error {
	drive := p.cfg.TargetDrive

	if err := p.mountFilesystems(ctx, drive); err != nil {
		return err
	}
	if err := p.copySystemFiles(); err != nil {
		return err
	}
	if err := p.createSwapFile(ctx); err != nil {
		return err
	}
	return p.installKernelFiles()
}

func (p systemInstallationPhase) mountFilesystems(ctx context.Context, drive string) error {
	p.logger.Info().Str("root", p.root).Msg("mounting filesystems")

	steps := []struct {
		command string
		desc    string
	}{
		{"mkdir -p " + p.root, "Creating installation root"},
		{fmt.Sprintf("mount %s %s", partitionPath(drive, 2), p.root), "Mounting root partition"},
		{fmt.Sprintf("mkdir -p %s/boot/efi", p.root), "Creating EFI mount point"},
		{fmt.Sprintf("mount %s %s/boot/efi", partitionPath(drive, 1), p.root), "Mounting EFI partition"},
	}
	for _, s := range steps {
		if _, err := p.runner.Run(ctx, s.command, s.desc, exec.Options{Capture: true, FailFast: true}); err != nil {
			return err
		}
	}
	return nil
}

// copySystemFiles is a named step without an implementation yet: squashfs
// detection and the rsync copy from the live medium are still to come.
func (p systemInstallationPhase) copySystemFiles() error {
	p.logger.Info().Msg("copying system files (not implemented, skipping)")
	return nil
}

func (p systemInstallationPhase) createSwapFile(ctx context.Context) error {
	size := resolveSwapSize(p.cfg.SwapSize)
	p.logger.Info().Str("size", size).Msg("creating swap file")

	swapfile := p.root + "/swapfile"
	steps := []struct {
		command string
		desc    string
	}{
		{fmt.Sprintf("fallocate -l %s %s", size, swapfile), "Creating swap file"},
		{"chmod 600 " + swapfile, "Setting swap file permissions"},
		{"mkswap " + swapfile, "Formatting swap file"},
	}
	for _, s := range steps {
		if _, err := p.runner.Run(ctx, s.command, s.desc, exec.Options{Capture: true, FailFast: true}); err != nil {
			return err
		}
	}
	return nil
}

// resolveSwapSize turns the "auto" setting into a concrete size for
// fallocate. Explicit sizes pass through.
func resolveSwapSize(size string) string {
	if strings.EqualFold(size, "auto") || size == "" {
		return "4G"
	}
	return size
}

func (p systemInstallationPhase) installKernelFiles() error {
	p.logger.Info().Msg("installing kernel files (not implemented, skipping)")
	return nil
}

type bootloaderPhase struct{ phaseDeps }

func (p bootloaderPhase) Execute(ctx context.Context) error {
	if err := p.setupChroot(ctx); err != nil {
		return err
	}
	if err := p.installGrub(ctx); err != nil {
		return err
	}
	return p.configureFstab()
}

func (p bootloaderPhase) setupChroot(ctx context.Context) error {
	p.logger.Info().Msg("setting up chroot environment")

	steps := []struct {
		command string
		desc    string
	}{
		{fmt.Sprintf("mount --bind /proc %s/proc", p.root), "Binding /proc"},
		{fmt.Sprintf("mount --bind /sys %s/sys", p.root), "Binding /sys"},
		{fmt.Sprintf("mount --bind /dev %s/dev", p.root), "Binding /dev"},
		{fmt.Sprintf("mount --bind /run %s/run", p.root), "Binding /run"},
		{fmt.Sprintf("mount --bind /dev/pts %s/dev/pts", p.root), "Binding /dev/pts"},
		{fmt.Sprintf("mount -t tmpfs tmpfs %s/tmp", p.root), "Mounting tmpfs for /tmp"},
		{fmt.Sprintf("chmod 1777 %s/tmp", p.root), "Setting permissions on /tmp"},
		{fmt.Sprintf("mount --bind /sys/firmware/efi/efivars %s/sys/firmware/efi/efivars", p.root), "Binding EFI variables"},
	}
	for _, s := range steps {
		if _, err := p.runner.Run(ctx, s.command, s.desc, exec.Options{Capture: true, FailFast: true}); err != nil {
			return err
		}
	}
	return nil
}

func (p bootloaderPhase) installGrub(ctx context.Context) error {
	drive := p.cfg.TargetDrive
	p.logger.Info().Str("drive", drive).Msg("installing GRUB bootloader")

	install := fmt.Sprintf(
		"chroot %s grub-install --target=x86_64-efi --efi-directory=/boot/efi --bootloader-id='KDE Neon' %s",
		p.root, drive,
	)
	if _, err := p.runner.Run(ctx, install, "Installing GRUB bootloader", exec.Options{Capture: true, FailFast: true}); err != nil {
		return err
	}

	_, err := p.runner.Run(ctx, fmt.Sprintf("chroot %s update-grub", p.root), "Generating GRUB configuration", exec.Options{
		Capture:  true,
		FailFast: true,
	})
	return err
}

// configureFstab still needs blkid UUID lookups for stable mount entries.
func (p bootloaderPhase) configureFstab() error {
	p.logger.Info().Msg("configuring fstab (not implemented, skipping)")
	return nil
}

type systemConfigurationPhase struct{ phaseDeps }

func (p systemConfigurationPhase) Execute(ctx context.Context) error {
	if err := p.configureLocale(); err != nil {
		return err
	}
	if err := p.configureNetwork(); err != nil {
		return err
	}
	if err := p.createUserAccount(); err != nil {
		return err
	}
	return p.cleanupPackages()
}

// The remaining steps log what the installed system should get without
// touching the target yet. Applying them needs locale-gen, networkd unit
// installation, and useradd/chpasswd runs inside the chroot.

func (p systemConfigurationPhase) configureLocale() error {
	p.logger.Info().
		Str("locale", p.cfg.Locale).
		Str("timezone", p.cfg.Timezone).
		Msg("configuring locale and timezone (not applied to target)")
	return nil
}

func (p systemConfigurationPhase) configureNetwork() error {
	unit := p.cfg.Network.SystemdUnit()
	p.logger.Info().
		Str("type", p.cfg.Network.Type).
		Str("interface", p.cfg.Network.Interface).
		Msg("configuring network (unit rendered, not applied to target)")
	p.logger.Debug().Str("unit", unit).Msg("systemd-networkd unit")
	return nil
}

func (p systemConfigurationPhase) createUserAccount() error {
	p.logger.Info().
		Str("username", p.cfg.Username).
		Bool("sudo_nopasswd", p.cfg.SudoNoPasswd).
		Msg("creating user account (not applied to target)")
	return nil
}

func (p systemConfigurationPhase) cleanupPackages() error {
	p.logger.Info().Msg("cleaning up live system packages (not applied to target)")
	return nil
}
