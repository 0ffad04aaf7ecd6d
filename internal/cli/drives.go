package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/slitos/slit-install/internal/exec"
	"github.com/slitos/slit-install/internal/hardware"
	"github.com/slitos/slit-install/internal/logging"
	"github.com/slitos/slit-install/pkg/model"
)

func newDrivesCmd() *cobra.Command {
	var (
		all         bool
		mock        bool
		verbose     bool
		windowsPath string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "drives",
		Short: "List block devices with size, model and Windows detection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			switch output {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("invalid --output %q (expected: table|json|yaml)", output)
			}

			runner := exec.NewRunner(logging.Component(logger, "exec"), mock)
			inv := hardware.NewInventory(logging.Component(logger, "hardware"), runner)

			if windowsPath != "" {
				det := inv.DetectWindowsComprehensive(cmd.Context(), windowsPath)
				switch output {
				case "json":
					return printJSON(det)
				case "yaml":
					return printYAML(det)
				}
				renderWindowsDetection(windowsPath, det)
				return nil
			}

			drives := inv.Enumerate(cmd.Context(), all)

			if verbose {
				report := driveReport{
					Drives:      drives,
					BootEntries: inv.ListBootEntries(cmd.Context()),
				}
				switch output {
				case "json":
					return printJSON(report)
				case "yaml":
					return printYAML(report)
				}
				renderDriveReport(report)
				return nil
			}

			switch output {
			case "json":
				return printJSON(drives)
			case "yaml":
				return printYAML(drives)
			}
			if len(drives) == 0 {
				fmt.Println("No drives detected.")
				return nil
			}
			renderDriveTable(drives)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include removable drives")
	cmd.Flags().BoolVar(&mock, "mock", false, "Use built-in sample drives instead of probing the host")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Also list the firmware boot entries")
	cmd.Flags().StringVar(&windowsPath, "windows", "", "Run full Windows detection on one drive path")
	cmd.Flags().StringVar(&output, "output", "table", "Output format: table|json|yaml")

	return cmd
}

// driveReport is the verbose listing: the drive inventory plus the firmware
// boot entry table.
type driveReport struct {
	Drives      []model.Drive        `json:"drives" yaml:"drives"`
	BootEntries []model.EFIBootEntry `json:"boot_entries" yaml:"boot_entries"`
}

func renderDriveReport(report driveReport) {
	if len(report.Drives) == 0 {
		fmt.Println("No drives detected.")
	} else {
		renderDriveTable(report.Drives)
	}

	fmt.Println()
	if len(report.BootEntries) == 0 {
		fmt.Println("No EFI boot entries found.")
		return
	}
	data := pterm.TableData{{"BOOT", "ACTIVE", "DESCRIPTION", "DEVICE"}}
	for _, e := range report.BootEntries {
		data = append(data, []string{e.Number, yesNo(e.Active), e.Description, e.Device})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderDriveTable(drives []model.Drive) {
	data := pterm.TableData{{"PATH", "SIZE", "MODEL", "REMOVABLE", "WINDOWS", "SAFE"}}
	for _, d := range drives {
		data = append(data, driveRow(d))
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func driveRow(d model.Drive) []string {
	return []string{
		d.Path,
		fmt.Sprintf("%d GB", d.SizeGB),
		d.Model,
		yesNo(d.Removable),
		yesNo(d.HasWindows),
		yesNo(hardware.IsSuitable(d)),
	}
}

func renderWindowsDetection(path string, det model.WindowsDetection) {
	verdict := pterm.FgGreen.Sprint("not found")
	if det.Found {
		verdict = pterm.FgRed.Sprint("found")
	}
	fmt.Printf("Windows on %s: %s (confidence: %s)\n", path, verdict, det.Confidence)
	for _, m := range det.Methods {
		fmt.Printf("  - %s\n", m)
	}
	if det.Version != "" {
		fmt.Printf("  Version: %s\n", det.Version)
	}
	for _, e := range det.BootEntries {
		fmt.Printf("  Boot entry: %s\n", e)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
