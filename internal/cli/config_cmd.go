package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/slitos/slit-install/internal/config"
	"github.com/slitos/slit-install/pkg/errs"
)

func newConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Interactive configuration manager",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			if !isatty.IsTerminal(os.Stdin.Fd()) {
				return &userError{
					msg:  "the configuration manager needs an interactive terminal",
					hint: "Use: slit-install config show / config validate in scripts",
				}
			}
			path, err := resolveConfigPath(configPath)
			if err != nil {
				return err
			}
			return runConfigManager(cmd.Context(), logger, path)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: the user config dir)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration with the password masked",
		RunE: func(_ *cobra.Command, _ []string) error {
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
			if cfg.UserPassword != "" {
				cfg.UserPassword = "********"
			}
			return printYAML(cfg)
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and list every violation",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := resolveConfigPath(configPath)
			if err != nil {
				return err
			}
			cfg, err := config.Read(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				fmt.Printf("\033[31m✗ %s is not valid\033[0m\n", path)
				for _, issue := range errs.Issues(err) {
					fmt.Printf("  - %s\n", issue.Message)
				}
				return fmt.Errorf("%d validation issue(s)", len(errs.Issues(err)))
			}
			fmt.Printf("\033[32m✓ %s is valid\033[0m\n", path)
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the resolved configuration file path",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := resolveConfigPath(configPath)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.AddCommand(show, validate, pathCmd)
	return cmd
}
