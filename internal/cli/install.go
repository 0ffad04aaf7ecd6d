package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/slitos/slit-install/internal/config"
	"github.com/slitos/slit-install/internal/exec"
	"github.com/slitos/slit-install/internal/install"
	"github.com/slitos/slit-install/internal/logging"
)

func newInstallCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		yes        bool
		output     string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Run the installation: preparation, partitioning, system files, bootloader, configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			if err := validateOutputFormat(output); err != nil {
				return err
			}

			path, err := resolveConfigPath(configPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return &userError{
					msg:  fmt.Sprintf("no configuration at %s", path),
					hint: "Run: slit-install config",
				}
			}
			cfg, err := config.Read(path)
			if err != nil {
				return err
			}

			if !dryRun && !yes {
				if !isatty.IsTerminal(os.Stdin.Fd()) {
					return &userError{
						msg:  "refusing to install without confirmation",
						hint: "Re-run with --yes, or try --dry-run first",
					}
				}
				if !confirmErase(cfg.TargetDrive) {
					fmt.Println("Cancelled.")
					return nil
				}
			}

			human := output == "human" &&
				strings.EqualFold(logFormat, "text") &&
				isatty.IsTerminal(os.Stdout.Fd())

			runner := exec.NewRunner(logging.Component(logger, "exec"), dryRun)
			res, runErr := install.Run(cmd.Context(), logging.Component(logger, "install"), cfg, runner, install.Options{
				HumanProgress: human,
			})

			switch output {
			case "json":
				if err := printJSON(res); err != nil {
					return err
				}
			case "yaml":
				if err := printYAML(res); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}

			if output == "human" {
				total := res.EndedAt.Sub(res.StartedAt).Truncate(time.Millisecond)
				if human {
					if res.DryRun {
						fmt.Printf("\n\033[32m✓ dry run completed\033[0m\n")
					} else {
						fmt.Printf("\n\033[32m✓ installation completed\033[0m\n")
					}
					fmt.Printf("  Drive:    \033[36m%s\033[0m\n", res.TargetDrive)
					fmt.Printf("  Hostname: \033[36m%s\033[0m\n", res.Hostname)
					fmt.Printf("  Total:    \033[36m%s\033[0m\n", total)
				} else {
					logger.Info().
						Str("drive", res.TargetDrive).
						Str("hostname", res.Hostname).
						Str("duration", total.String()).
						Bool("dry_run", res.DryRun).
						Msg("installation completed")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: the user config dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate every command without changing the system")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the interactive erase confirmation")
	cmd.Flags().StringVar(&output, "output", "human", "Result format: human|json|yaml")

	return cmd
}

func confirmErase(drive string) bool {
	fmt.Printf("\n\033[1;31m⚠ ALL DATA ON %s WILL BE ERASED\033[0m\n", drive)
	return readLineClean("  Type YES to continue: ") == "YES"
}

func resolveConfigPath(flagPath string) (string, error) {
	if strings.TrimSpace(flagPath) != "" {
		return flagPath, nil
	}
	return config.DefaultPath()
}

func validateOutputFormat(output string) error {
	switch output {
	case "human", "json", "yaml":
		return nil
	}
	return fmt.Errorf("invalid --output %q (expected: human|json|yaml)", output)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}

func printYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode yaml output: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
